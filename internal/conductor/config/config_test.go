package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/options"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
)

func TestCreateConfigFromDefaults(t *testing.T) {
	opts := options.NewOptions()
	opts.MCPOptions.ConfigFile = filepath.Join(t.TempDir(), "mcp.json")
	opts.RunnerOptions.MaxHandoffs = 3

	cfg, err := CreateConfigFromOptions(opts)
	require.NoError(t, err)
	assert.Contains(t, cfg.MCP.Names(), "holidays")
	assert.Equal(t, "IngredientExtractor", cfg.Pipeline.EntryAgent)
	assert.Equal(t, 3, cfg.Pipeline.Limits.MaxHandoffs)
}

func TestCreateConfigRejectsUnknownServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {"todoist": {"command": "npx"}}}`), 0o600))

	opts := options.NewOptions()
	opts.MCPOptions.ConfigFile = path

	_, err := CreateConfigFromOptions(opts)
	assert.ErrorIs(t, err, errno.ErrUnknownServer)
	assert.Contains(t, err.Error(), "holidays")
}
