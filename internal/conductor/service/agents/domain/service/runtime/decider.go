package runtime

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
)

// DecisionKind is what the model chose to do next.
type DecisionKind int

const (
	DecisionFinalAnswer DecisionKind = iota
	DecisionToolCall
	DecisionHandoff
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionToolCall:
		return "tool_call"
	case DecisionHandoff:
		return "handoff"
	default:
		return "final_answer"
	}
}

// Decision is one model step.
type Decision struct {
	Kind DecisionKind

	// ToolCall is set for DecisionToolCall.
	ToolCall *entity.ToolCall
	// HandoffTarget is the agent name for DecisionHandoff.
	HandoffTarget string
	// HandoffCallID is the model's call ID for the transfer, if any.
	HandoffCallID string
	// Content is the answer text for DecisionFinalAnswer.
	Content string

	Usage *entity.TokenUsage
}

// HandoffOption is a hand-off target offered to the model.
type HandoffOption struct {
	Name        string
	Description string
}

// ModelRequest is everything a Decider sees for one step. History is a
// snapshot; deciders may keep it.
type ModelRequest struct {
	Agent        *entity.Agent
	Instructions string
	History      []*entity.Message
	Tools        []*schema.ToolInfo
	Handoffs     []HandoffOption
	// OutputSchema is the JSON Schema the final answer must match, empty
	// when the agent has no output contract.
	OutputSchema string
}

// Decider is the model-inference capability.
type Decider interface {
	Decide(ctx context.Context, req *ModelRequest) (*Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, req *ModelRequest) (*Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, req *ModelRequest) (*Decision, error) {
	return f(ctx, req)
}
