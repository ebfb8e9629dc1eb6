package config

import "time"

// Config is the merged blog configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Editor   EditorConfig   `mapstructure:"editor" yaml:"editor"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DatabaseConfig selects the post store. Path is used by sqlite, DSN by
// postgres. User accounts always live in the sqlite file at Path.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// RedisConfig enables the read-through post cache when Addr is set.
type RedisConfig struct {
	Addr string        `mapstructure:"addr" yaml:"addr,omitempty"`
	DB   int           `mapstructure:"db" yaml:"db"`
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type EditorConfig struct {
	AutosaveInterval time.Duration `mapstructure:"autosave_interval" yaml:"autosave_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ReapInterval     time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`
}

type AuthConfig struct {
	SessionDuration time.Duration `mapstructure:"session_duration" yaml:"session_duration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	SecureCookies   bool          `mapstructure:"secure_cookies" yaml:"secure_cookies"`
	AdminUser       string        `mapstructure:"admin_user" yaml:"admin_user"`
	AdminPass       string        `mapstructure:"admin_pass" yaml:"-"`
}
