package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/docreg/pkg/config"
	"github.com/Mindburn-Labs/docreg/pkg/registry"
)

// OpenStore returns the registry store selected by cfg and a function that
// releases it. SQL backends need their driver registered by the binary:
// "sqlite" (modernc.org/sqlite) and "postgres" (github.com/lib/pq).
func OpenStore(ctx context.Context, cfg *config.Config) (registry.Store, func() error, error) {
	noop := func() error { return nil }
	logger := slog.Default().With("component", "pipeline")

	switch cfg.Registry.Backend {
	case "", config.BackendFile:
		return registry.NewFileStore(cfg.Registry.Path), noop, nil

	case config.BackendSQLite:
		dbPath := cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		logger.Info("lite mode: using sqlite registry", "path", dbPath)
		return initSQLStore(ctx, db, "sqlite:"+dbPath)

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("DB ping failed: %w", err)
		}
		logger.Info("postgres registry connected")
		return initSQLStore(ctx, db, "postgres")

	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

func initSQLStore(ctx context.Context, db *sql.DB, name string) (registry.Store, func() error, error) {
	s := registry.NewSQLStore(db, name)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init registry tables: %w", err)
	}
	return s, db.Close, nil
}

// OpenRegistry opens the configured store and loads the registry from it.
func OpenRegistry(ctx context.Context, cfg *config.Config, mustExist bool, opts ...registry.Option) (*registry.Registry, func() error, error) {
	store, closeFn, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.Open(ctx, store, mustExist, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("open registry %s: %w", store.Location(), err)
	}
	return reg, closeFn, nil
}
