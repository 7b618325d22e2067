package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/kiosk404/conductor/internal/conductor/service/mcp"
)

// MCPOptions holds options for the MCP (Model Context Protocol) subsystem.
// MCP uses a standalone configuration file.
type MCPOptions struct {
	// ConfigFile is the path to the MCP configuration file. When it does
	// not exist the built-in meal-planning servers are used.
	ConfigFile string `json:"config-file" mapstructure:"config-file"`

	// HandshakeTimeout bounds launch, initialize and tool discovery of one
	// server.
	HandshakeTimeout time.Duration `json:"handshake-timeout" mapstructure:"handshake-timeout"`
}

// NewMCPOptions creates a default MCPOptions instance.
func NewMCPOptions() *MCPOptions {
	return &MCPOptions{
		ConfigFile:       "conf/mcp.json",
		HandshakeTimeout: mcp.DefaultHandshakeTimeout,
	}
}

// Validate checks the MCPOptions for correctness.
func (o *MCPOptions) Validate() []error {
	var errs []error
	if o.ConfigFile == "" {
		errs = append(errs, errors.New("mcp.config-file is required"))
	}
	if o.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("mcp.handshake-timeout must be positive"))
	}
	return errs
}

// AddFlags adds the MCPOptions flags to the given flag set.
func (o *MCPOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "mcp.config-file", o.ConfigFile, "Path to the MCP configuration file.")
	fs.DurationVar(&o.HandshakeTimeout, "mcp.handshake-timeout", o.HandshakeTimeout,
		"Time allowed for a tool server to start and list its tools.")
}

// Load reads the MCP configuration file, falling back to the built-in
// servers when the file is absent or empty.
func (o *MCPOptions) Load() (*mcp.MCPConfig, error) {
	cfg, err := mcp.LoadMCPConfig(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	if len(cfg.MCPServers) == 0 {
		return mcp.DefaultMCPConfig(), nil
	}
	return cfg, nil
}
