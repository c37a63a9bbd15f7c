package memcache

import (
	"fmt"

	mc "github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/infra/config"
)

// Client wraps memcache.Client with health check and lifecycle management.
// The underlying client maintains its own per-server connection pools, so
// there is no Close; dropping the client releases the idle connections.
type Client struct {
	client *mc.Client
	logger *zap.Logger
	cfg    config.MemcacheSettings
}

// NewClient initializes the memcached client with a startup health check
func NewClient(cfg config.MemcacheSettings, logger *zap.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("memcache: no servers configured")
	}

	client := mc.New(cfg.Servers...)
	client.Timeout = cfg.Timeout
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}

	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("memcache ping failed: %w", err)
	}

	logger.Info("Memcached connection established",
		zap.Strings("servers", cfg.Servers),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &Client{
		client: client,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// Client returns the underlying memcache.Client for direct access
func (c *Client) Client() *mc.Client {
	return c.client
}

// HealthCheck pings every configured server
func (c *Client) HealthCheck() error {
	if err := c.client.Ping(); err != nil {
		return fmt.Errorf("memcache health check failed: %w", err)
	}
	return nil
}
