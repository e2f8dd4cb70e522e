// Package config resolves application settings.
//
// Values come from two layers, checked in this order:
//
//  1. an optional env file (KEY=value lines, default ".env")
//  2. the process environment
//
// A key set in the file wins; the process environment only fills keys the
// file does not mention. The merged map is then decoded into Config with
// caarlos0/env, which applies defaults and enforces required keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// DefaultFile is read when CONFIG_FILE is not set.
const DefaultFile = ".env"

// Config holds all application configuration.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`

	// Storage: "sqlite" uses DBPath, "postgres" uses DatabaseURL.
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"data/history.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Identity
	FirebaseProjectID string        `env:"FIREBASE_PROJECT_ID,required"`
	AdminEmails       []string      `env:"ADMIN_EMAILS" envSeparator:","`
	RedisURL          string        `env:"REDIS_URL"`
	TokenCacheTTL     time.Duration `env:"TOKEN_CACHE_TTL" envDefault:"5m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with '/', got %q", c.APIPrefix)
	}
	return nil
}

var (
	loaded  *Config
	loadErr error
	once    sync.Once
)

// Load resolves the configuration once per process and caches the result.
// path is the env file to read; empty means CONFIG_FILE or DefaultFile.
func Load(path string) (*Config, error) {
	once.Do(func() {
		loaded, loadErr = Parse(path, os.Environ())
	})
	return loaded, loadErr
}

// Get returns the configuration cached by Load, or nil before Load ran.
func Get() *Config {
	return loaded
}

// Parse builds a Config from the env file at path and the given process
// environment (in os.Environ form). It does not touch the cache, which makes
// it the entry point for tests.
func Parse(path string, environ []string) (*Config, error) {
	procEnv := toMap(environ)

	if path == "" {
		path = procEnv["CONFIG_FILE"]
	}
	if path == "" {
		path = DefaultFile
	}

	fileEnv, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		fileEnv = map[string]string{}
	}

	merged := make(map[string]string, len(procEnv)+len(fileEnv))
	for k, v := range procEnv {
		merged[k] = v
	}
	// file wins
	for k, v := range fileEnv {
		merged[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func toMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
