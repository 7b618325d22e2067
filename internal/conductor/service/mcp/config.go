package mcp

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/internal/pkg/envref"
	"github.com/kiosk404/conductor/pkg/utils/json"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCPConfig holds the top-level MCP configuration.
// Compatible with Claude Desktop / VS Code MCP config format.
//
// File format (mcp.json):
//
//	{
//	  "mcpServers": {
//	    "holidays": {
//	      "command": "uv",
//	      "args": ["run", "vic-au-dates-mcp-server"]
//	    },
//	    "todoist": {
//	      "command": "npx",
//	      "args": ["-y", "@kydycode/todoist-mcp-server-ext@latest"],
//	      "env": {"TODOIST_API_TOKEN": "${TODOIST_API_KEY}"}
//	    }
//	  }
//	}
type MCPConfig struct {
	// MCPServers maps server name → server configuration.
	MCPServers map[string]*ServerConfig `json:"mcpServers" mapstructure:"mcpServers"`
}

// ServerConfig describes how to launch and reach one tool server. It is
// immutable once loaded.
type ServerConfig struct {
	// Name is the unique server name. Filled from the mcpServers key.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Transport is "stdio" (default) or "sse".
	Transport string `json:"transport,omitempty" mapstructure:"transport"`

	// Command and Args launch the server process (stdio only).
	Command string   `json:"command,omitempty" mapstructure:"command"`
	Args    []string `json:"args,omitempty" mapstructure:"args"`

	// Env is added to the server's environment (stdio only). Values may be
	// "${VAR}" references, resolved right before launch.
	Env map[string]string `json:"env,omitempty" mapstructure:"env"`

	// URL is the SSE endpoint (sse only).
	URL string `json:"url,omitempty" mapstructure:"url"`

	// ToolFilter limits the exposed tools. Empty exposes all.
	ToolFilter []string `json:"toolFilter,omitempty" mapstructure:"toolFilter"`
}

// String never includes env values.
func (c *ServerConfig) String() string {
	keys := c.envKeys()
	switch c.transport() {
	case TransportSSE:
		return fmt.Sprintf("%s(sse %s)", c.Name, c.URL)
	default:
		return fmt.Sprintf("%s(stdio %s %s env=[%s])", c.Name, c.Command, strings.Join(c.Args, " "), strings.Join(keys, ","))
	}
}

func (c *ServerConfig) transport() string {
	if c.Transport == "" {
		return TransportStdio
	}
	return c.Transport
}

func (c *ServerConfig) envKeys() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks one server entry for obvious errors.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server name is required")
	}
	switch c.transport() {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcpServers.%s: command is required for stdio transport", c.Name)
		}
	case TransportSSE:
		if c.URL == "" {
			return fmt.Errorf("mcpServers.%s: url is required for sse transport", c.Name)
		}
	default:
		return fmt.Errorf("mcpServers.%s: unsupported transport %q (must be 'stdio' or 'sse')", c.Name, c.Transport)
	}
	return nil
}

// ResolveEnv expands env references into "KEY=VALUE" pairs, sorted by key.
// Any unresolved reference is ErrMissingCredential; the error names the
// variable, never a value.
func (c *ServerConfig) ResolveEnv(lookup envref.LookupFunc) ([]string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := make([]string, 0, len(c.Env))
	var missing []string
	for _, k := range c.envKeys() {
		v, miss := envref.Resolve(c.Env[k], lookup)
		missing = append(missing, miss...)
		env = append(env, k+"="+v)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: server %q needs %s", errno.ErrMissingCredential, c.Name, strings.Join(missing, ", "))
	}
	return env, nil
}

func (c *ServerConfig) missingCredentials(lookup envref.LookupFunc) []string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var missing []string
	for _, k := range c.envKeys() {
		_, miss := envref.Resolve(c.Env[k], lookup)
		missing = append(missing, miss...)
	}
	return missing
}

// LoadMCPConfig loads the MCP configuration from a JSON file.
// If the file does not exist, returns an empty config (no error).
func LoadMCPConfig(path string) (*MCPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMCPConfig(), nil
		}
		return nil, fmt.Errorf("failed to read MCP config file %q: %w", path, err)
	}

	cfg := &MCPConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse MCP config file %q: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// NewMCPConfig creates a default (empty) MCP configuration.
func NewMCPConfig() *MCPConfig {
	return &MCPConfig{
		MCPServers: make(map[string]*ServerConfig),
	}
}

// DefaultMCPConfig is the meal-planning server catalog used when no mcp.json
// is present.
func DefaultMCPConfig() *MCPConfig {
	cfg := &MCPConfig{MCPServers: map[string]*ServerConfig{
		"holidays": {
			Command: "uv",
			Args:    []string{"run", "vic-au-dates-mcp-server"},
		},
		"todoist": {
			Command: "npx",
			Args:    []string{"-y", "@kydycode/todoist-mcp-server-ext@latest"},
			Env:     map[string]string{"TODOIST_API_TOKEN": "${TODOIST_API_KEY}"},
		},
		"playwright": {
			Command: "npx",
			Args:    []string{"-y", "@playwright/mcp@latest"},
		},
	}}
	cfg.normalize()
	return cfg
}

func (c *MCPConfig) normalize() {
	if c.MCPServers == nil {
		c.MCPServers = make(map[string]*ServerConfig)
	}
	for name, srv := range c.MCPServers {
		if srv == nil {
			delete(c.MCPServers, name)
			continue
		}
		srv.Name = name
		if srv.Transport == "" {
			srv.Transport = TransportStdio
		}
	}
}

// Validate checks the MCP configuration for obvious errors.
func (c *MCPConfig) Validate() []error {
	var errs []error
	for _, name := range c.Names() {
		if err := c.MCPServers[name].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Names returns the configured server names, sorted.
func (c *MCPConfig) Names() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named server entry.
func (c *MCPConfig) Lookup(name string) (*ServerConfig, error) {
	srv, ok := c.MCPServers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not configured", errno.ErrUnknownServer, name)
	}
	return srv, nil
}

// PreflightCredentials resolves the env of every spec without launching
// anything and reports every missing credential at once.
func PreflightCredentials(specs []*ServerConfig, lookup envref.LookupFunc) error {
	var errs []string
	for _, spec := range specs {
		if missing := spec.missingCredentials(lookup); len(missing) > 0 {
			errs = append(errs, fmt.Sprintf("server %q needs %s", spec.Name, strings.Join(missing, ", ")))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", errno.ErrMissingCredential, strings.Join(errs, "; "))
	}
	return nil
}
