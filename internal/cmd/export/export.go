// Package export parses export command flags and runs a one-shot panel export.
package export

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/louisbranch/rewind/internal/domain/event"
	panelexport "github.com/louisbranch/rewind/internal/export"
	entrypoint "github.com/louisbranch/rewind/internal/platform/cmd"
	"github.com/louisbranch/rewind/internal/storage/sqlite"
)

// Config holds export command configuration.
type Config struct {
	DBPath     string `env:"REWIND_DB_PATH" envDefault:"data/rewind.db"`
	Out        string `env:"REWIND_EXPORT_OUT"`
	S3Bucket   string `env:"REWIND_EXPORT_S3_BUCKET"`
	S3Key      string `env:"REWIND_EXPORT_S3_KEY"`
	S3Region   string `env:"REWIND_EXPORT_S3_REGION"`
	S3Endpoint string `env:"REWIND_EXPORT_S3_ENDPOINT"`

	// GameID selects the game to export. Flag only, always required.
	GameID string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GameID, "game", "", "The game to export (required)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.Out, "out", cfg.Out, "Output file path (default: stdout)")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket to upload to instead of a file")
	fs.StringVar(&cfg.S3Key, "s3-key", cfg.S3Key, "S3 object key (default: rewind/<game>.jsonl)")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3 endpoint override for MinIO-compatible stores")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.GameID) == "" {
		return Config{}, errors.New("game id is required")
	}
	return cfg, nil
}

// Run executes the export.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceExport, func(ctx context.Context) error {
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

	switch {
	case strings.TrimSpace(cfg.S3Bucket) != "":
		key := strings.TrimSpace(cfg.S3Key)
		if key == "" {
			key = fmt.Sprintf("rewind/%s.jsonl", cfg.GameID)
		}
		dest, err := panelexport.NewS3Destination(ctx, cfg.S3Bucket, key, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return fmt.Errorf("init s3 destination: %w", err)
		}
		if err := panelexport.ExportGame(ctx, store, cfg.GameID, dest); err != nil {
			return err
		}
		log.Printf("exported game %s to s3://%s/%s", cfg.GameID, cfg.S3Bucket, key)
	case strings.TrimSpace(cfg.Out) != "" && cfg.Out != "-":
		if err := panelexport.ExportGame(ctx, store, cfg.GameID, &panelexport.FileDestination{Path: cfg.Out}); err != nil {
			return err
		}
		log.Printf("exported game %s to %s", cfg.GameID, cfg.Out)
	default:
		if err := panelexport.WriteGameJSONL(ctx, store, cfg.GameID, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
