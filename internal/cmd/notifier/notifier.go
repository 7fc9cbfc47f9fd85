// Package notifier parses notifier command flags and launches the notifier
// runtime.
package notifier

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/releaseline/internal/platform/cmd"
	notifierserver "github.com/louisbranch/releaseline/internal/services/notifier/app"
)

// Config holds notifier command configuration.
type Config struct {
	Port          int           `env:"RELEASELINE_NOTIFIER_PORT" envDefault:"8091"`
	DBPath        string        `env:"RELEASELINE_NOTIFIER_DB_PATH" envDefault:"data/notifier.db"`
	ChannelDBPath string        `env:"RELEASELINE_CHANNEL_DB_PATH" envDefault:"data/channel.db"`
	PollInterval  time.Duration `env:"RELEASELINE_NOTIFIER_POLL_INTERVAL" envDefault:"2s"`
	MaxAttempts   int           `env:"RELEASELINE_NOTIFIER_MAX_ATTEMPTS" envDefault:"4"`
	RetryBackoff  time.Duration `env:"RELEASELINE_NOTIFIER_RETRY_BACKOFF" envDefault:"1s"`
	RetryMaxDelay time.Duration `env:"RELEASELINE_NOTIFIER_RETRY_MAX_DELAY" envDefault:"10s"`
	SMTPHost      string        `env:"RELEASELINE_SMTP_HOST"`
	SMTPPort      int           `env:"RELEASELINE_SMTP_PORT" envDefault:"587"`
	SMTPUsername  string        `env:"RELEASELINE_SMTP_USERNAME"`
	SMTPPassword  string        `env:"RELEASELINE_SMTP_PASSWORD"`
	MailFrom      string        `env:"RELEASELINE_MAIL_FROM"`
	MailDomain    string        `env:"RELEASELINE_MAIL_DOMAIN" envDefault:"example.com"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The notifier health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The notification audit SQLite database path")
	fs.StringVar(&cfg.ChannelDBPath, "channel-db-path", cfg.ChannelDBPath, "The event channel SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Channel poll interval")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum processing attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", cfg.SMTPHost, "SMTP server host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "SMTP server port")
	fs.StringVar(&cfg.SMTPUsername, "smtp-username", cfg.SMTPUsername, "SMTP username")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", cfg.SMTPPassword, "SMTP password")
	fs.StringVar(&cfg.MailFrom, "mail-from", cfg.MailFrom, "Notification sender address")
	fs.StringVar(&cfg.MailDomain, "mail-domain", cfg.MailDomain, "Default domain for bare recipients")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the notifier runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceNotifier, func(context.Context) error {
		return notifierserver.Run(ctx, notifierserver.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			ChannelDBPath: cfg.ChannelDBPath,
			PollInterval:  cfg.PollInterval,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
			SMTPHost:      cfg.SMTPHost,
			SMTPPort:      cfg.SMTPPort,
			SMTPUsername:  cfg.SMTPUsername,
			SMTPPassword:  cfg.SMTPPassword,
			MailFrom:      cfg.MailFrom,
			MailDomain:    cfg.MailDomain,
		})
	})
}
