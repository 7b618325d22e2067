package runtime

import (
	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
)

// schemaHistory renders the run history for the model. Assistant turns keep
// their agent in Name, so after a hand-off the active agent can tell its
// own turns from those of the agent before it.
func schemaHistory(history []*entity.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case entity.RoleTool:
			out = append(out, schema.ToolMessage(m.Content, m.ToolCallID, schema.WithToolName(m.Name)))
		case entity.RoleAssistant:
			msg := schema.AssistantMessage(m.Content, schemaToolCalls(m.ToolCalls))
			if m.Agent != "" {
				msg.Name = entity.SanitizeName(m.Agent)
			}
			out = append(out, msg)
		case entity.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

func schemaToolCalls(calls []*entity.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = schema.ToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: schema.FunctionCall{Name: c.Name, Arguments: c.Arguments},
		}
	}
	return out
}

// firstToolCall is the call the runner executes; later ones are dropped.
func firstToolCall(out *schema.Message) (*entity.ToolCall, int) {
	if len(out.ToolCalls) == 0 {
		return nil, 0
	}
	tc := out.ToolCalls[0]
	return &entity.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}, len(out.ToolCalls)
}
