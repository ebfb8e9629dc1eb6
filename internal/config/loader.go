// Package config loads blog settings from defaults, an optional YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "BLOG"

// legacyEnv maps keys to the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"auth.admin_user":     "ADMIN_USER",
	"auth.admin_pass":     "ADMIN_PASS",
	"auth.secure_cookies": "SECURE_COOKIES",
}

// Load merges configuration. An empty path looks for blog.yaml in the
// working directory and carries on without it if absent; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("blog")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("editor.autosave_interval", d.Editor.AutosaveInterval)
	v.SetDefault("editor.idle_timeout", d.Editor.IdleTimeout)
	v.SetDefault("editor.reap_interval", d.Editor.ReapInterval)
	v.SetDefault("auth.session_duration", d.Auth.SessionDuration)
	v.SetDefault("auth.cleanup_interval", d.Auth.CleanupInterval)
	v.SetDefault("auth.secure_cookies", d.Auth.SecureCookies)
	v.SetDefault("auth.admin_user", d.Auth.AdminUser)
	v.SetDefault("auth.admin_pass", d.Auth.AdminPass)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
		if c.Database.Path == "" {
			return errors.New("database.path is required for the account store")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"editor.autosave_interval", c.Editor.AutosaveInterval},
		{"editor.idle_timeout", c.Editor.IdleTimeout},
		{"editor.reap_interval", c.Editor.ReapInterval},
		{"auth.session_duration", c.Auth.SessionDuration},
		{"auth.cleanup_interval", c.Auth.CleanupInterval},
	}
	for _, each := range durations {
		if each.d <= 0 {
			return fmt.Errorf("%s must be positive", each.name)
		}
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.New("redis.ttl must be positive")
	}
	return nil
}
