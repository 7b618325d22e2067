package entity

import (
	"fmt"
	"time"
)

// RunStatus represents the lifecycle state of a Run.
//
// State machine: Created → InProgress → Completed | Failed | Cancelled
type RunStatus string

const (
	RunStatusCreated    RunStatus = "created"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// IsTerminal returns true if the run has reached a terminal state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run is the mutable record of a single request flowing through an agent
// graph. It is owned by exactly one runner invocation.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
	Input  string    `json:"input"`

	// EntryAgent is the agent the run started with.
	EntryAgent string `json:"entry_agent"`
	// ActiveAgent is the agent currently in control.
	ActiveAgent string `json:"active_agent"`

	// History is append-only within a run and carried across hand-offs.
	History []*Message `json:"history"`

	// RawOutput is the last final answer text produced by the model.
	RawOutput string `json:"raw_output,omitempty"`
	// FinalOutput is RawOutput after contract validation.
	FinalOutput map[string]any `json:"final_output,omitempty"`

	Usage *TokenUsage `json:"usage,omitempty"`
	Error *RunError   `json:"error,omitempty"`

	Turns         int `json:"turns"`
	HandoffCount  int `json:"handoff_count"`
	ToolCallCount int `json:"tool_call_count"`
	OutputRetries int `json:"output_retries"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Append adds messages to the history.
func (r *Run) Append(msgs ...*Message) {
	r.History = append(r.History, msgs...)
}

// RunError holds structured error information for a failed run.
type RunError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// TokenUsage tracks token consumption for a single run.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates other into u. A nil other is a no-op.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// HandoffRecord is one control transfer inside a run.
type HandoffRecord struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// TraceInfo is the diagnostic summary of a finished trace scope.
type TraceInfo struct {
	Name      string          `json:"name"`
	TraceID   string          `json:"trace_id,omitempty"`
	SpanID    string          `json:"span_id,omitempty"`
	Outcome   string          `json:"outcome"`
	Handoffs  []HandoffRecord `json:"handoffs,omitempty"`
	ToolCalls int             `json:"tool_calls"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// RunResult is what callers get back from a pipeline run.
type RunResult struct {
	RunID       string         `json:"run_id"`
	Status      RunStatus      `json:"status"`
	FinalOutput map[string]any `json:"final_output,omitempty"`
	RawOutput   string         `json:"raw_output,omitempty"`
	LastAgent   string         `json:"last_agent,omitempty"`
	History     []*Message     `json:"history,omitempty"`
	Usage       *TokenUsage    `json:"usage,omitempty"`
	Error       *RunError      `json:"error,omitempty"`
	Trace       *TraceInfo     `json:"trace,omitempty"`

	Turns         int `json:"turns"`
	HandoffCount  int `json:"handoff_count"`
	ToolCallCount int `json:"tool_call_count"`
}

// Succeeded reports whether the run completed.
func (r *RunResult) Succeeded() bool {
	return r.Status == RunStatusCompleted
}
