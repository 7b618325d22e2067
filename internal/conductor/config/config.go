package config

import (
	"fmt"

	"github.com/kiosk404/conductor/internal/conductor/options"
	"github.com/kiosk404/conductor/internal/conductor/pipeline"
	"github.com/kiosk404/conductor/internal/conductor/service/mcp"
)

// Config is the running configuration of one conductor invocation: the
// options plus what they point to.
type Config struct {
	*options.Options

	// MCP is the tool server catalog loaded from MCPOptions.ConfigFile.
	MCP *mcp.MCPConfig
	// Pipeline is the agent graph with the runner limits applied.
	Pipeline *pipeline.Config
}

// CreateConfigFromOptions loads the tool server catalog and assembles the
// pipeline. The options must already be completed and validated.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	catalog, err := opts.MCPOptions.Load()
	if err != nil {
		return nil, err
	}

	p := opts.PipelineOptions.Config(opts.RunnerOptions.RunConfig())
	for _, name := range p.ServerNames() {
		if _, err := catalog.Lookup(name); err != nil {
			return nil, fmt.Errorf("pipeline: %w (config file %s)", err, opts.MCPOptions.ConfigFile)
		}
	}

	return &Config{Options: opts, MCP: catalog, Pipeline: p}, nil
}
