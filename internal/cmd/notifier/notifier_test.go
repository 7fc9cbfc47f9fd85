package notifier

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)
	t.Setenv("RELEASELINE_NOTIFIER_PORT", "9091")
	t.Setenv("RELEASELINE_SMTP_HOST", "smtp.dev.example")

	cfg, err := ParseConfig(fs, []string{"-max-attempts", "2", "-mail-domain", "dev.example"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9091 {
		t.Fatalf("port = %d, want 9091", cfg.Port)
	}
	if cfg.SMTPHost != "smtp.dev.example" {
		t.Fatalf("smtp host = %q", cfg.SMTPHost)
	}
	if cfg.MaxAttempts != 2 {
		t.Fatalf("max attempts = %d, want 2", cfg.MaxAttempts)
	}
	if cfg.MailDomain != "dev.example" {
		t.Fatalf("mail domain = %q", cfg.MailDomain)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8091 {
		t.Fatalf("port = %d, want 8091", cfg.Port)
	}
	if cfg.MaxAttempts != 4 {
		t.Fatalf("max attempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff != time.Second {
		t.Fatalf("retry backoff = %v, want 1s", cfg.RetryBackoff)
	}
	if cfg.RetryMaxDelay != 10*time.Second {
		t.Fatalf("retry max delay = %v, want 10s", cfg.RetryMaxDelay)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval)
	}
}
