package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/kiosk404/conductor/pkg/logger"
)

type Config struct {
	MCPConfig        *MCPConfig
	HandshakeTimeout time.Duration

	// ClientFactory overrides the transport. nil uses DefaultClientFactory.
	ClientFactory ClientFactory
}

// CompletedConfig is the completed configuration for MCP.
type CompletedConfig struct {
	*Config
}

// Complete validates and fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.MCPConfig == nil {
		c.MCPConfig = NewMCPConfig()
	}
	c.MCPConfig.normalize()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ClientFactory == nil {
		c.ClientFactory = DefaultClientFactory
	}
	return CompletedConfig{c}
}

// Module holds the static server catalog. Connections are per run: see
// NewRegistry.
type Module struct {
	config           *MCPConfig
	handshakeTimeout time.Duration
	factory          ClientFactory
}

// New creates the MCP module. It validates the configuration but launches
// nothing.
func (c CompletedConfig) New(_ context.Context) (*Module, error) {
	if errs := c.MCPConfig.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid MCP configuration: %v", errs)
	}
	logger.Info("[MCP] module initialized (%d servers configured)", len(c.MCPConfig.MCPServers))
	return &Module{
		config:           c.MCPConfig,
		handshakeTimeout: c.HandshakeTimeout,
		factory:          c.ClientFactory,
	}, nil
}

// ServerNames returns the configured server names, sorted.
func (m *Module) ServerNames() []string {
	return m.config.Names()
}

// Specs resolves names to server configs, preserving order.
func (m *Module) Specs(names []string) ([]*ServerConfig, error) {
	specs := make([]*ServerConfig, 0, len(names))
	for _, name := range names {
		spec, err := m.config.Lookup(name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// NewRegistry creates an empty run-scoped registry using the module's
// transport settings.
func (m *Module) NewRegistry(opts ...RegistryOption) *Registry {
	return NewRegistry(m.registryOptions(opts)...)
}

// WithRegistry is the package-level WithRegistry with the module's
// transport settings.
func (m *Module) WithRegistry(ctx context.Context, specs []*ServerConfig, fn func(ctx context.Context, reg *Registry) error, opts ...RegistryOption) error {
	return WithRegistry(ctx, specs, fn, m.registryOptions(opts)...)
}

func (m *Module) registryOptions(extra []RegistryOption) []RegistryOption {
	base := []RegistryOption{
		WithClientFactory(m.factory),
		WithHandshakeTimeout(m.handshakeTimeout),
	}
	return append(base, extra...)
}
