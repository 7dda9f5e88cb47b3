package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/blogdesk/core"
)

var _ core.Storage = (*Adapter)(nil)

// Adapter stores console slots as plain Redis strings under a key prefix.
type Adapter struct {
	client *redis.Client
	prefix string
}

type Options struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Prefix is prepended to all keys (e.g., "blogdesk:")
	Prefix string

	ConnectTimeout time.Duration
}

// Open parses the URL and pings the server.
func Open(ctx context.Context, opts Options) (*Adapter, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return New(client, opts.Prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Adapter {
	return &Adapter{client: client, prefix: prefix}
}

func (a *Adapter) prefixKey(key string) string {
	return a.prefix + key
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := a.client.Get(ctx, a.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStorageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set stores without expiry; slots live until deleted
func (a *Adapter) Set(ctx context.Context, key string, value []byte) error {
	if err := a.client.Set(ctx, a.prefixKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.client.Close()
}
