// Package api parses API command flags and launches the HTTP service.
package api

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	apihttp "github.com/louisbranch/rewind/internal/api/http"
	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/ingest"
	entrypoint "github.com/louisbranch/rewind/internal/platform/cmd"
	"github.com/louisbranch/rewind/internal/platform/timeouts"
	"github.com/louisbranch/rewind/internal/resolve"
	"github.com/louisbranch/rewind/internal/storage/sqlite"
)

// Config holds API command configuration.
type Config struct {
	Addr     string        `env:"REWIND_API_ADDR" envDefault:":8080"`
	DBPath   string        `env:"REWIND_DB_PATH" envDefault:"data/rewind.db"`
	NATSURL  string        `env:"REWIND_NATS_URL"`
	CacheTTL time.Duration `env:"REWIND_RESOLVE_CACHE_TTL" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The API HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "The NATS broker URL (empty disables the bus consumer)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Resolution cache entry TTL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the API runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(ctx context.Context) error {
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

	cache, err := resolve.NewCache(cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("init resolution cache: %w", err)
	}

	grant, err := loadGrantConfig()
	if err != nil {
		return err
	}
	if grant == nil {
		log.Printf("ingest grants not configured, write surfaces are open")
	}

	service := &ingest.Service{Events: store, Bios: store, Marks: store}
	server := &apihttp.Server{
		Resolver: &resolve.Resolver{
			Events:      store,
			Checkpoints: store,
			Bios:        store,
			Marks:       store,
			Cache:       cache,
		},
		Ingest: service,
		Events: store,
		Panel:  store,
		Grant:  grant,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewHandler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	log.Printf("api listening on %s", cfg.Addr)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	consumerErr := make(chan error, 1)
	if url := strings.TrimSpace(cfg.NATSURL); url != "" {
		subscriber, err := ingest.NewNATSSubscriber(url)
		if err != nil {
			return fmt.Errorf("connect ingest bus: %w", err)
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				log.Printf("close ingest bus: %v", err)
			}
		}()
		consumer := &ingest.Consumer{Service: service, Subscriber: subscriber}
		log.Printf("consuming ingest subjects from %s", url)
		go func() {
			consumerErr <- consumer.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ingest consumer: %w", err)
		}
		return nil
	}
}

// loadGrantConfig reads grant verification settings when any grant env is
// set. All three unset leaves write surfaces open for local runs; a partial
// configuration is a misconfiguration and fails startup.
func loadGrantConfig() (*ingest.GrantConfig, error) {
	if os.Getenv(ingest.EnvGrantIssuer) == "" &&
		os.Getenv(ingest.EnvGrantAudience) == "" &&
		os.Getenv(ingest.EnvGrantPublicKey) == "" {
		return nil, nil
	}
	cfg, err := ingest.LoadGrantConfigFromEnv(nil)
	if err != nil {
		return nil, fmt.Errorf("load ingest grant config: %w", err)
	}
	return &cfg, nil
}
