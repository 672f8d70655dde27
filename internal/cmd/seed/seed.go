// Package seed parses seed command flags and writes the demo game.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/ingest"
	entrypoint "github.com/louisbranch/rewind/internal/platform/cmd"
	"github.com/louisbranch/rewind/internal/storage/sqlite"
	seedtool "github.com/louisbranch/rewind/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"REWIND_DB_PATH" envDefault:"data/rewind.db"`

	// GameID, Seed, Possessions and Verbose shape the scripted game and
	// come from flags only.
	GameID      string
	Seed        int64
	Possessions int
	Verbose     bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	def := seedtool.DefaultConfig()
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.GameID, "game", def.GameID, "Game id to seed")
	fs.Int64Var(&cfg.Seed, "seed", def.Seed, "Random seed for the demo script")
	fs.IntVar(&cfg.Possessions, "possessions", def.PossessionsPerPeriod, "Possessions per period")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose progress output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds the demo game.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
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

	seedCfg := seedtool.DefaultConfig()
	seedCfg.GameID = cfg.GameID
	seedCfg.Seed = cfg.Seed
	seedCfg.PossessionsPerPeriod = cfg.Possessions
	seedCfg.Verbose = cfg.Verbose

	svc := &ingest.Service{Events: store, Bios: store, Marks: store}
	if err := seedtool.New(seedCfg, svc, os.Stderr).Run(ctx); err != nil {
		return fmt.Errorf("seed game %s: %w", cfg.GameID, err)
	}
	log.Printf("seeded game %s into %s", cfg.GameID, cfg.DBPath)
	return nil
}
