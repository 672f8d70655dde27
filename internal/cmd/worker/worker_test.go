package worker

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/rewind/internal/domain/checkpoint"
)

func TestParseConfigParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("REWIND_DB_PATH", "env/rewind.db")
	t.Setenv("REWIND_CHECKPOINT_POLICY", "interval")
	t.Setenv("REWIND_CHECKPOINT_INTERVAL", "90s")

	cfg, err := ParseConfig(fs, []string{"-poll-interval", "1s", "-owner", "builder-7"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "env/rewind.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "env/rewind.db")
	}
	if cfg.Policy.Kind != checkpoint.PolicyInterval {
		t.Fatalf("policy kind = %q, want %q", cfg.Policy.Kind, checkpoint.PolicyInterval)
	}
	if cfg.Policy.Interval != 90*time.Second {
		t.Fatalf("policy interval = %v, want %v", cfg.Policy.Interval, 90*time.Second)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("poll interval = %v, want %v", cfg.PollInterval, time.Second)
	}
	if cfg.Owner != "builder-7" {
		t.Fatalf("owner = %q, want %q", cfg.Owner, "builder-7")
	}
}

func TestParseConfigDerivesOwner(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !strings.HasPrefix(cfg.Owner, "worker-") {
		t.Fatalf("owner = %q, want a worker- prefix", cfg.Owner)
	}
	if cfg.Policy.Kind != checkpoint.PolicyEveryN || cfg.Policy.EveryN != 25 {
		t.Fatalf("policy = %+v, want every_n 25", cfg.Policy)
	}
	if cfg.LeaseTTL != 5*time.Minute {
		t.Fatalf("lease ttl = %v, want %v", cfg.LeaseTTL, 5*time.Minute)
	}
}

func TestParseConfigRejectsUnknownPolicy(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	if _, err := ParseConfig(fs, []string{"-policy", "sometimes"}); err == nil {
		t.Fatal("expected unknown policy to be rejected")
	}
}

func TestParseConfigRejectsBothRebuilds(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	if _, err := ParseConfig(fs, []string{"-rebuild-player", "p1", "-rebuild-game", "g1"}); err == nil {
		t.Fatal("expected combined rebuild flags to be rejected")
	}
}
