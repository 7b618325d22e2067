package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
)

const sampleConfig = `{
  "mcpServers": {
    "holidays": {"command": "uv", "args": ["run", "vic-au-dates-mcp-server"]},
    "todoist": {
      "command": "npx",
      "args": ["-y", "@kydycode/todoist-mcp-server-ext@latest"],
      "env": {"TODOIST_API_TOKEN": "${TODOIST_API_KEY}"}
    },
    "remote": {"transport": "sse", "url": "http://localhost:8931/sse"}
  }
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMCPConfig(t *testing.T) {
	cfg, err := LoadMCPConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"holidays", "remote", "todoist"}, cfg.Names())
	assert.Empty(t, cfg.Validate())

	todo, err := cfg.Lookup("todoist")
	require.NoError(t, err)
	assert.Equal(t, "todoist", todo.Name)
	assert.Equal(t, TransportStdio, todo.Transport)

	_, err = cfg.Lookup("nope")
	assert.ErrorIs(t, err, errno.ErrUnknownServer)
}

func TestLoadMCPConfigMissingFile(t *testing.T) {
	cfg, err := LoadMCPConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Names())
}

func TestLoadMCPConfigMalformed(t *testing.T) {
	_, err := LoadMCPConfig(writeConfig(t, `{"mcpServers": [`))
	assert.Error(t, err)
}

func TestValidateServerConfig(t *testing.T) {
	assert.Error(t, (&ServerConfig{Name: "a"}).Validate())
	assert.Error(t, (&ServerConfig{Name: "a", Transport: TransportSSE}).Validate())
	assert.Error(t, (&ServerConfig{Name: "a", Transport: "grpc", Command: "x"}).Validate())
	assert.NoError(t, (&ServerConfig{Name: "a", Command: "x"}).Validate())
}

func TestServerConfigStringHidesSecrets(t *testing.T) {
	c := &ServerConfig{
		Name:    "todoist",
		Command: "npx",
		Env:     map[string]string{"TODOIST_API_TOKEN": "super-secret"},
	}
	s := c.String()
	assert.Contains(t, s, "TODOIST_API_TOKEN")
	assert.NotContains(t, s, "super-secret")
}

func TestPreflightCredentials(t *testing.T) {
	todo := &ServerConfig{Name: "todoist", Command: "npx", Env: map[string]string{"TODOIST_API_TOKEN": "${TODOIST_API_KEY}"}}
	lookup := func(string) (string, bool) { return "", false }

	err := PreflightCredentials([]*ServerConfig{todo}, lookup)
	require.ErrorIs(t, err, errno.ErrMissingCredential)
	assert.Contains(t, err.Error(), "TODOIST_API_KEY")

	ok := func(string) (string, bool) { return "tk", true }
	assert.NoError(t, PreflightCredentials([]*ServerConfig{todo}, ok))
}

func TestModule(t *testing.T) {
	cfg, err := LoadMCPConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	mod, err := (&Config{MCPConfig: cfg}).Complete().New(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"holidays", "remote", "todoist"}, mod.ServerNames())

	specs, err := mod.Specs([]string{"todoist", "holidays"})
	require.NoError(t, err)
	assert.Equal(t, "todoist", specs[0].Name)
	assert.Equal(t, "holidays", specs[1].Name)

	_, err = mod.Specs([]string{"playwright"})
	assert.ErrorIs(t, err, errno.ErrUnknownServer)

	bad := NewMCPConfig()
	bad.MCPServers["x"] = &ServerConfig{Transport: "grpc"}
	_, err = (&Config{MCPConfig: bad}).Complete().New(context.Background())
	assert.Error(t, err)
}

func TestDefaultMCPConfig(t *testing.T) {
	cfg := DefaultMCPConfig()
	assert.Equal(t, []string{"holidays", "playwright", "todoist"}, cfg.Names())
	assert.Empty(t, cfg.Validate())

	todo, err := cfg.Lookup("todoist")
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, todo.Transport)
	assert.Equal(t, "${TODOIST_API_KEY}", todo.Env["TODOIST_API_TOKEN"])
}
