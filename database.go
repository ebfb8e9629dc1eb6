package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/nmsalvatore/go-blog/internal/config"
	"github.com/nmsalvatore/go-blog/internal/post"
	"github.com/nmsalvatore/go-blog/internal/store"
)

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", store.SQLiteDSN(path))
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// initDB creates the account tables. Posts are migrated by the post store.
func initDB(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating account tables: %w", err)
	}

	return nil
}

// openPostStore returns the configured post repository, wrapped in the
// redis cache when one is configured. close releases whatever it opened
// beyond db.
func openPostStore(ctx context.Context, db *sql.DB, cfg *config.Config) (post.Repository, func(), error) {
	var (
		repo    post.Repository
		closers []func()
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := store.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		repo = pg
		closers = append(closers, func() { pg.Close() })
	default:
		s, err := store.NewSQLite(db)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite post store: %w", err)
		}
		repo = s
	}

	if cfg.Redis.Addr != "" {
		cache := store.NewRedisCache(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.TTL)
		if err := cache.Ping(ctx); err != nil {
			log.Printf("redis unavailable, reads will go to the database: %v", err)
		}
		repo = store.NewCached(repo, cache, log.Default())
		closers = append(closers, func() { cache.Close() })
	}

	return repo, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
