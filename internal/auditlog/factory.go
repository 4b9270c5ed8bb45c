package auditlog

import (
	"context"
	"errors"
	"fmt"

	"chatbridge/config"
	"chatbridge/internal/storage"
)

// Result holds the turn logger and the storage it writes to.
// The caller must call Close during shutdown.
type Result struct {
	Logger  Recorder
	Storage *storage.DB
}

// Close releases the logger and then the storage. Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Logger != nil {
		if err := r.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logger close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		r.Storage = nil
	}
	return errors.Join(errs...)
}

// New creates the turn logger from configuration. When turn logging is
// disabled a NoopLogger without storage is returned.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if !cfg.Audit.Enabled {
		return &Result{Logger: NoopLogger{}}, nil
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	logStore, err := createLogStore(ctx, store, cfg.Audit.RetentionDays)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Result{
		Logger:  NewLogger(logStore, ConfigFrom(cfg.Audit)),
		Storage: store,
	}, nil
}

func createLogStore(ctx context.Context, db *storage.DB, retentionDays int) (LogStore, error) {
	switch db.Backend {
	case storage.TypeSQLite:
		return NewSQLiteStore(db.SQL, retentionDays)
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, db.Pool, retentionDays)
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, db.Mongo, retentionDays)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", db.Backend)
	}
}
