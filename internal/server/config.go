package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MMontoya03/mcp-database/internal/catalog"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// ReadinessProbe reports whether the backing store is reachable.
type ReadinessProbe interface {
	Ready(ctx context.Context) error
}

type Config struct {
	Logger  *slog.Logger
	Catalog *catalog.Service

	// Store readiness backs the /readyz endpoint.
	Store ReadinessProbe

	Version           string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for MCP endpoint authentication
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
