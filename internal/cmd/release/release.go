// Package release parses release command flags and launches the release
// runtime.
package release

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/releaseline/internal/platform/cmd"
	releaseserver "github.com/louisbranch/releaseline/internal/services/release/app"
)

// Config holds release command configuration.
type Config struct {
	Port            int           `env:"RELEASELINE_RELEASE_PORT" envDefault:"8090"`
	DBPath          string        `env:"RELEASELINE_RELEASE_DB_PATH" envDefault:"data/release.db"`
	ChannelDBPath   string        `env:"RELEASELINE_CHANNEL_DB_PATH" envDefault:"data/channel.db"`
	StaleThreshold  time.Duration `env:"RELEASELINE_RELEASE_STALE_THRESHOLD" envDefault:"48h"`
	StaleInterval   time.Duration `env:"RELEASELINE_RELEASE_STALE_INTERVAL" envDefault:"1h"`
	MonitorInterval time.Duration `env:"RELEASELINE_RELEASE_MONITOR_INTERVAL" envDefault:"1m"`
	Developers      string        `env:"RELEASELINE_RELEASE_DEVELOPERS"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The release health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The release SQLite database path")
	fs.StringVar(&cfg.ChannelDBPath, "channel-db-path", cfg.ChannelDBPath, "The event channel SQLite database path")
	fs.DurationVar(&cfg.StaleThreshold, "stale-threshold", cfg.StaleThreshold, "How long a task may stay in process before a reminder")
	fs.DurationVar(&cfg.StaleInterval, "stale-interval", cfg.StaleInterval, "Stale task sweep interval")
	fs.DurationVar(&cfg.MonitorInterval, "monitor-interval", cfg.MonitorInterval, "Dependency health check interval")
	fs.StringVar(&cfg.Developers, "developers", cfg.Developers, "Developer email directory as dev=email pairs")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the release runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRelease, func(context.Context) error {
		return releaseserver.Run(ctx, releaseserver.RuntimeConfig{
			Port:            cfg.Port,
			DBPath:          cfg.DBPath,
			ChannelDBPath:   cfg.ChannelDBPath,
			StaleThreshold:  cfg.StaleThreshold,
			StaleInterval:   cfg.StaleInterval,
			MonitorInterval: cfg.MonitorInterval,
			Developers:      cfg.Developers,
		})
	})
}
