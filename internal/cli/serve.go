package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/keepsake/internal/config"
	"github.com/sakif/keepsake/internal/metrics"
	"github.com/sakif/keepsake/internal/repository"
	"github.com/sakif/keepsake/internal/repository/postgres"
	"github.com/sakif/keepsake/internal/repository/sqlite"
	"github.com/sakif/keepsake/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	// From here on the server owns the store and closes it on shutdown.
	srv, err := server.New(cfg, store, collector, VersionString(), logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start()
}

// newLogger writes human-readable text in development and JSON in
// production.
func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore connects to the configured driver and brings its schema up to
// date.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var store repository.Store
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig()
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		db, err := postgres.New(ctx, cfg.Database.URL, poolCfg, logger)
		if err != nil {
			return nil, err
		}
		store = db

	default:
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = db
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating %s: %w", cfg.Database.Driver, err)
	}
	logger.Info("database ready", slog.String("driver", cfg.Database.Driver))
	return store, nil
}
