package entity

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ToolServer is the agent-side view of a connected tool provider. Agents
// hold these as non-owning references; the registry owns the processes.
type ToolServer interface {
	// Name is the unique server name within a registry.
	Name() string
	// Tools returns the discovered tool catalog. Only valid while ready.
	Tools() ([]*schema.ToolInfo, error)
	// HasTool reports whether the catalog contains the named tool.
	HasTool(name string) bool
	// Invoke calls a tool with JSON-encoded arguments and returns its text result.
	Invoke(ctx context.Context, tool, arguments string) (string, error)
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	// ID is the unique identifier for the tool call.
	ID string `json:"id"`
	// Name is the tool name to invoke
	Name string `json:"name"`
	// Arguments is the JSON string of the tool arguments.
	Arguments string `json:"arguments"`
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	// Server is the tool server that served the call, empty if none did.
	Server  string `json:"server,omitempty"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Observation renders the result as the text fed back to the model.
func (r *ToolResult) Observation() string {
	if r.Error != "" {
		return "error: " + r.Error
	}
	return r.Content
}
