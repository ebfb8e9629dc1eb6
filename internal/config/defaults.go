package config

import (
	"time"

	"github.com/nmsalvatore/go-blog/internal/editor"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "blog.db",
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Editor: EditorConfig{
			AutosaveInterval: editor.DefaultAutosaveInterval,
			IdleTimeout:      2 * time.Hour,
			ReapInterval:     10 * time.Minute,
		},
		Auth: AuthConfig{
			SessionDuration: 24 * time.Hour,
			CleanupInterval: time.Hour,
			AdminUser:       "admin",
		},
	}
}
