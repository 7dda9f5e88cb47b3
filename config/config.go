package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lborres/blogdesk/core"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// MinDemoSecretLength matches the HS256 key size the demo issuer accepts.
const MinDemoSecretLength = 32

// Config holds the console configuration loaded from environment variables.
type Config struct {
	APIURL         string        `env:"BLOGDESK_API_URL" envDefault:"http://127.0.0.1:8000"`
	Mode           string        `env:"BLOGDESK_MODE" envDefault:"auto"`
	OfflineLogin   bool          `env:"BLOGDESK_OFFLINE_LOGIN" envDefault:"true"`
	RequestTimeout time.Duration `env:"BLOGDESK_REQUEST_TIMEOUT" envDefault:"0s"`
	RejectExpired  bool          `env:"BLOGDESK_REJECT_EXPIRED" envDefault:"false"`

	// Backends keyed by username accept only the local part of an email.
	StripEmailDomain bool `env:"BLOGDESK_STRIP_EMAIL_DOMAIN" envDefault:"true"`

	Storage       string `env:"BLOGDESK_STORAGE" envDefault:"sqlite"`
	SQLitePath    string `env:"BLOGDESK_SQLITE_PATH" envDefault:"./blogdesk.db"`
	RedisURL      string `env:"BLOGDESK_REDIS_URL"`
	PostgresURL   string `env:"BLOGDESK_POSTGRES_URL"`
	StoragePrefix string `env:"BLOGDESK_STORAGE_PREFIX" envDefault:"blogdesk:"`

	LogLevel   string `env:"BLOGDESK_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"BLOGDESK_LOG_FORMAT" envDefault:"text"`
	ListenAddr string `env:"BLOGDESK_LISTEN_ADDR" envDefault:"127.0.0.1:8080"`

	// DemoSecret signs offline tokens; random per process when empty.
	DemoSecret string `env:"BLOGDESK_DEMO_SECRET"`
}

// BackendMode parses Mode.
func (c Config) BackendMode() (core.BackendMode, error) {
	return core.ParseBackendMode(c.Mode)
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	mode, err := c.BackendMode()
	if err != nil {
		return fmt.Errorf("BLOGDESK_MODE %q: %w", c.Mode, err)
	}
	if mode != core.BackendLocal {
		u, err := url.Parse(c.APIURL)
		if c.APIURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("BLOGDESK_API_URL %q: %w", c.APIURL, core.ErrBaseURLRequired)
		}
	}
	if c.RequestTimeout < 0 {
		return errors.New("BLOGDESK_REQUEST_TIMEOUT must not be negative")
	}

	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return errors.New("BLOGDESK_SQLITE_PATH is required for sqlite storage")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("BLOGDESK_REDIS_URL is required for redis storage")
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return errors.New("BLOGDESK_POSTGRES_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("BLOGDESK_STORAGE %q: %w", c.Storage, core.ErrUnknownStorage)
	}

	if c.DemoSecret != "" && len(c.DemoSecret) < MinDemoSecretLength {
		return fmt.Errorf("%w: BLOGDESK_DEMO_SECRET must be at least %d bytes, got %d",
			core.ErrDemoSecretTooShort, MinDemoSecretLength, len(c.DemoSecret))
	}
	return nil
}
