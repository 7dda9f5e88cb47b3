package blogdesk

import (
	"context"
	"fmt"
	"time"

	pgxadapter "github.com/lborres/blogdesk/adapters/pgx"
	redisadapter "github.com/lborres/blogdesk/adapters/redis"
	"github.com/lborres/blogdesk/adapters/sqlite"
	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/kv"
)

// StorageConfig selects and configures a Storage driver.
type StorageConfig struct {
	Driver      string // memory, sqlite, redis or postgres
	SQLitePath  string
	RedisURL    string
	PostgresURL string
	Prefix      string
}

const storageConnectTimeout = 5 * time.Second

// OpenStorage opens the configured driver.
func OpenStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	var (
		storage Storage
		err     error
	)
	switch cfg.Driver {
	case "", "memory":
		return kv.NewMemory(), nil
	case "sqlite":
		storage, err = sqlite.Open(cfg.SQLitePath)
	case "redis":
		storage, err = redisadapter.Open(ctx, redisadapter.Options{
			URL:            cfg.RedisURL,
			Prefix:         cfg.Prefix,
			ConnectTimeout: storageConnectTimeout,
		})
	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, storageConnectTimeout)
		defer cancel()
		storage, err = pgxadapter.Open(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStorage, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}
	return storage, nil
}
