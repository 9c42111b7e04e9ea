// Package badgerdb opens the embedded BadgerDB instance backing the persistent store.
package badgerdb

import (
	"fmt"
	"log/slog"
	"os"

	"pairtalk/app/config"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// logAdapter routes badger's internal logging into slog.
type logAdapter struct {
	logger *slog.Logger
}

func (l *logAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewClient(di *do.Injector) (*badger.DB, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return Open(cfg.Storage)
}

func Open(cfg config.Storage) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, oops.Errorf("badger path is required for persistent storage")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, oops.Errorf("failed to create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&logAdapter{logger: slog.Default().With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, oops.Errorf("failed to open badger: %w", err)
	}

	slog.Info("Opened badger storage", "path", cfg.Path, "in_memory", cfg.InMemory)

	return db, nil
}
