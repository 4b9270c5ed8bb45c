package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"chatbridge/config"
)

const defaultSQLitePath = "data/chatbridge.db"

// sqlitePragmas favour a single writer with concurrent readers.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

func openSQLite(ctx context.Context, cfg config.SQLiteConfig) (*DB, error) {
	path := cfg.Path
	if path == "" {
		path = defaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}
	// the turn log batches its inserts, so one connection is enough and
	// avoids SQLITE_BUSY between writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pctx, cancel := pingContext(ctx)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database %s: %w", path, err)
	}
	return &DB{Backend: TypeSQLite, SQL: db}, nil
}
