package repository

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
)

// RecordStore is a keyed blob store owned by the caller.
type RecordStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

type OpenOptions struct {
	// DatabaseURL selects Postgres; empty means Badger under DataDir.
	DatabaseURL string
	DataDir     string
	Migrations  fs.FS
}

// Open connects the configured record store, migrating Postgres first.
func Open(ctx context.Context, opts OpenOptions) (RecordStore, error) {
	if opts.DatabaseURL == "" {
		dir := filepath.Join(opts.DataDir, "records")
		store, err := NewBadger(BadgerOptions{Dir: dir})
		if err != nil {
			return nil, err
		}
		slog.Info("record store ready", "backend", "badger", "dir", dir)
		return store, nil
	}

	pool, err := NewPool(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(opts.DatabaseURL, opts.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate record store: %w", err)
	}
	slog.Info("record store ready", "backend", "postgres")
	return NewPostgres(pool), nil
}
