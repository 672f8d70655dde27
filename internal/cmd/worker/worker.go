// Package worker parses worker command flags and launches the build loop.
package worker

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/checkpoint"
	"github.com/louisbranch/rewind/internal/domain/event"
	entrypoint "github.com/louisbranch/rewind/internal/platform/cmd"
	"github.com/louisbranch/rewind/internal/platform/id"
	"github.com/louisbranch/rewind/internal/storage/sqlite"
	builder "github.com/louisbranch/rewind/internal/worker"
)

// Config holds worker command configuration.
type Config struct {
	DBPath         string        `env:"REWIND_DB_PATH" envDefault:"data/rewind.db"`
	Owner          string        `env:"REWIND_WORKER_OWNER"`
	PollInterval   time.Duration `env:"REWIND_WORKER_POLL_INTERVAL" envDefault:"5s"`
	LeaseTTL       time.Duration `env:"REWIND_WORKER_LEASE_TTL" envDefault:"5m"`
	PolicyKind     string        `env:"REWIND_CHECKPOINT_POLICY" envDefault:"every_n"`
	PolicyEveryN   int           `env:"REWIND_CHECKPOINT_EVERY_N" envDefault:"25"`
	PolicyInterval time.Duration `env:"REWIND_CHECKPOINT_INTERVAL" envDefault:"5m"`

	// Policy is derived from the three policy fields during parsing.
	Policy checkpoint.Policy

	// RebuildPlayer and RebuildGame turn the command into a one-shot
	// regeneration of a single entity instead of the poll loop.
	RebuildPlayer string
	RebuildGame   string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.Owner, "owner", cfg.Owner, "Lease owner identity (default: a fresh worker id)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Mark ledger poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Entity claim lease duration")
	fs.StringVar(&cfg.PolicyKind, "policy", cfg.PolicyKind, "Checkpoint cadence (every_event, every_n, interval, per_game)")
	fs.IntVar(&cfg.PolicyEveryN, "every-n", cfg.PolicyEveryN, "Events per checkpoint for the every_n cadence")
	fs.DurationVar(&cfg.PolicyInterval, "checkpoint-interval", cfg.PolicyInterval, "Stream time per checkpoint for the interval cadence")
	fs.StringVar(&cfg.RebuildPlayer, "rebuild-player", "", "Rebuild one player into the next generation and exit")
	fs.StringVar(&cfg.RebuildGame, "rebuild-game", "", "Rebuild one game into the next generation and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	policy, err := checkpoint.ParsePolicy(cfg.PolicyKind, cfg.PolicyEveryN, cfg.PolicyInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.Policy = policy

	if cfg.RebuildPlayer != "" && cfg.RebuildGame != "" {
		return Config{}, errors.New("rebuild-player and rebuild-game are mutually exclusive")
	}

	if strings.TrimSpace(cfg.Owner) == "" {
		owner, err := id.NewID()
		if err != nil {
			return Config{}, fmt.Errorf("derive worker owner: %w", err)
		}
		cfg.Owner = "worker-" + owner
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(ctx, cfg.DBPath, event.Default())
	if err != nil {
		return fmt.Errorf("open store at %s: %w", cfg.DBPath, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	w := &builder.Worker{
		Events:      store,
		Checkpoints: store,
		Marks:       store,
		Bios:        store,
		Panel:       store,
		Policy:      cfg.Policy,
		Owner:       cfg.Owner,
		Interval:    cfg.PollInterval,
		LeaseFor:    cfg.LeaseTTL,
	}

	if player := strings.TrimSpace(cfg.RebuildPlayer); player != "" {
		log.Printf("rebuilding player %s", player)
		return w.RebuildPlayer(ctx, player)
	}
	if game := strings.TrimSpace(cfg.RebuildGame); game != "" {
		log.Printf("rebuilding game %s", game)
		return w.RebuildGame(ctx, game)
	}

	log.Printf("building %s checkpoints as %s", cfg.Policy.Kind, cfg.Owner)
	w.Run(ctx)
	return nil
}
