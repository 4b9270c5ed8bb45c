// Package storage opens the database the turn log writes to.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"chatbridge/config"
)

// Backend names accepted in storage.type.
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// appName tags server-side connections so operators can tell chatbridge
// sessions apart in pg_stat_activity and the MongoDB logs.
const appName = "chatbridge"

// connectTimeout bounds the liveness check made when a backend is opened.
const connectTimeout = 10 * time.Second

// DB is one open database connection. Exactly one of SQL, Pool and Mongo is
// set, matching Backend. A DB is safe for concurrent use.
type DB struct {
	Backend string

	SQL   *sql.DB
	Pool  *pgxpool.Pool
	Mongo *mongo.Database

	mongoClient *mongo.Client
	closeOnce   sync.Once
	closeErr    error
}

// Open connects to the backend selected by cfg.Type. An empty type means
// SQLite.
func Open(ctx context.Context, cfg config.StorageConfig) (*DB, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		return openSQLite(ctx, cfg.SQLite)
	case TypePostgreSQL:
		return openPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return openMongoDB(ctx, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}

// Close releases the connection. Later calls return the first result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.SQL != nil {
			errs = append(errs, d.SQL.Close())
		}
		if d.Pool != nil {
			d.Pool.Close()
		}
		if d.mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			errs = append(errs, d.mongoClient.Disconnect(ctx))
			cancel()
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func pingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, connectTimeout)
}
