package entity

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the run history. The history is shared by every
// agent of a run; Agent records who was active when the entry was added.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is the tool a RoleTool message answers for.
	Name  string `json:"name,omitempty"`
	Agent string `json:"agent,omitempty"`

	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a RoleTool message to its call.
	ToolCallID string `json:"tool_call_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func newMessage(role Role, agent, content string) *Message {
	return &Message{Role: role, Agent: agent, Content: content, CreatedAt: time.Now()}
}

// NewUserMessage is the run input, or a correction the runner sends on the
// user's behalf.
func NewUserMessage(content string) *Message {
	return newMessage(RoleUser, "", content)
}

func NewAssistantMessage(agent, content string) *Message {
	return newMessage(RoleAssistant, agent, content)
}

// NewToolCallMessage records the assistant's request for one tool call.
func NewToolCallMessage(agent string, call *ToolCall) *Message {
	m := newMessage(RoleAssistant, agent, "")
	m.ToolCalls = []*ToolCall{call}
	return m
}

// NewToolMessage records the observation for call toolCallID.
func NewToolMessage(agent, toolCallID, name, content string) *Message {
	m := newMessage(RoleTool, agent, content)
	m.Name = name
	m.ToolCallID = toolCallID
	return m
}

// NewHandoffMessages records a transfer from agent from to agent to as a
// call of the transfer tool and its result, which names the new assistant.
func NewHandoffMessages(from, to, callID, toolName string) []*Message {
	return []*Message{
		NewToolCallMessage(from, &ToolCall{ID: callID, Name: toolName, Arguments: "{}"}),
		NewToolMessage(from, callID, toolName, fmt.Sprintf(`{"assistant": %q}`, to)),
	}
}
