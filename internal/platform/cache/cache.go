// Package cache connects to the optional Redis/Dragonfly instance behind the
// per-session token budgets (ai.RedisBudget) and reports it to /readyz.
// Without ENGLISH_CACHE_URL the server keeps budgets in memory instead.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientName tags this server's connections in CLIENT LIST.
const ClientName = "30days-english"

// Budget checks run before every generation; keep round trips short.
const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 2 * time.Second
)

// Cache holds the connection shared by the budget store and readiness checks.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates ENGLISH_CACHE_URL (redis:// or rediss://).
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// options applies the connection defaults. A client name given in the URL wins.
func options(url string) (*redis.Options, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	if opts.ClientName == "" {
		opts.ClientName = ClientName
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	return opts, nil
}

// New connects and pings once.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := options(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging cache at %s: %w", opts.Addr, err)
	}
	return &Cache{Client: client}, nil
}

func (c *Cache) Close() error {
	return c.Client.Close()
}

// Name identifies the dependency in readiness reports.
func (c *Cache) Name() string { return "cache" }

// HealthCheck pings the budget store.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping: %w", err)
	}
	return nil
}
