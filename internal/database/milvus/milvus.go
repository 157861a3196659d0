package milvus

import (
	"context"
	"errors"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"papernotes/internal/config"
	"papernotes/pkg/logger"
)

// ErrNotFound is returned when a lookup matches no stored record.
var ErrNotFound = errors.New("not found")

// Client wraps a Milvus connection together with its configuration.
// Connections are created explicitly by the caller and shared through
// dependency injection; there is no package-level instance.
type Client struct {
	Client client.Client
	Config *config.MilvusConfig
	log    *logger.Logger
}

// NewClient connects to Milvus at the configured address.
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}
	log := logger.New("milvus", "")
	log.WithField("address", cfg.Address).Info("connected to milvus")
	return &Client{Client: c, Config: cfg, log: log}, nil
}

// Close shuts down the underlying connection.
func (c *Client) Close() {
	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			c.log.WithField("error", err.Error()).Warn("failed to close milvus connection")
			return
		}
		c.log.Info("milvus connection closed")
	}
}

// HealthCheck verifies the connection is alive by listing collections.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return errors.New("milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}
