package entity

// EventType identifies the type of a run event.
type EventType string

const (
	EventRunStatus     EventType = "run_status"
	EventAgentActive   EventType = "agent_active"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallEnd   EventType = "tool_call_end"
	EventHandoff       EventType = "handoff"
	// EventOutputRejected is emitted when a final answer fails its contract
	// and the model is asked again.
	EventOutputRejected EventType = "output_rejected"
	EventFinalAnswer    EventType = "final_answer"
	EventError          EventType = "error"
)

// RunEvent is a progress notification emitted by the runner. Events are
// informational; consumers cannot influence the run.
type RunEvent struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	Agent string    `json:"agent,omitempty"`

	ToolCall   *ToolCall      `json:"tool_call,omitempty"`
	ToolResult *ToolResult    `json:"tool_result,omitempty"`
	Handoff    *HandoffRecord `json:"handoff,omitempty"`
	RunStatus  RunStatus      `json:"run_status,omitempty"`
	Content    string         `json:"content,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// EventSink receives run events. Implementations must not block.
type EventSink func(*RunEvent)
