package release

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("release", flag.ContinueOnError)
	t.Setenv("RELEASELINE_RELEASE_PORT", "9090")
	t.Setenv("RELEASELINE_RELEASE_DEVELOPERS", "alice=alice@dev.example")

	cfg, err := ParseConfig(fs, []string{"-stale-threshold", "24h"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Port)
	}
	if cfg.Developers != "alice=alice@dev.example" {
		t.Fatalf("developers = %q", cfg.Developers)
	}
	if cfg.StaleThreshold != 24*time.Hour {
		t.Fatalf("stale threshold = %v, want 24h", cfg.StaleThreshold)
	}
	if cfg.StaleInterval != time.Hour {
		t.Fatalf("stale interval = %v, want 1h", cfg.StaleInterval)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("release", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("port = %d, want 8090", cfg.Port)
	}
	if cfg.DBPath != "data/release.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.StaleThreshold != 48*time.Hour {
		t.Fatalf("stale threshold = %v, want 48h", cfg.StaleThreshold)
	}
	if cfg.MonitorInterval != time.Minute {
		t.Fatalf("monitor interval = %v, want 1m", cfg.MonitorInterval)
	}
}
