package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	llmEntity "github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/pkg/logger"
)

const HandoffToolPrefix = entity.HandoffToolPrefix

// ChatModelResolver returns the chat model bound to a model reference.
// *llm.Module implements it.
type ChatModelResolver interface {
	ChatModel(ctx context.Context, ref llmEntity.ModelRef, opts llmEntity.ChatOptions) (model.BaseChatModel, error)
}

// ChatModelDecider decides with an Eino tool-calling chat model. Hand-off
// targets are offered as one transfer tool each.
type ChatModelDecider struct {
	models ChatModelResolver
}

var _ Decider = (*ChatModelDecider)(nil)

func NewChatModelDecider(models ChatModelResolver) *ChatModelDecider {
	return &ChatModelDecider{models: models}
}

// HandoffToolName is the transfer tool name for an agent.
func HandoffToolName(agent string) string {
	return entity.HandoffToolName(agent)
}

func (d *ChatModelDecider) Decide(ctx context.Context, req *ModelRequest) (*Decision, error) {
	ref := req.Agent.Model()
	// Agents with an output contract ask for JSON mode where available.
	base, err := d.models.ChatModel(ctx, ref, llmEntity.ChatOptions{JSONOutput: req.OutputSchema != ""})
	if err != nil {
		if errors.Is(err, errno.ErrMissingCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", errno.ErrModelCall, ref, err)
	}

	tools := make([]*schema.ToolInfo, 0, len(req.Tools)+len(req.Handoffs))
	tools = append(tools, req.Tools...)
	handoffByTool := make(map[string]string, len(req.Handoffs))
	for _, h := range req.Handoffs {
		name := HandoffToolName(h.Name)
		handoffByTool[name] = h.Name
		tools = append(tools, &schema.ToolInfo{
			Name:        name,
			Desc:        handoffToolDesc(h),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		})
	}

	chat := base
	if len(tools) > 0 {
		tcm, ok := base.(model.ToolCallingChatModel)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errno.ErrModelNotToolCapable, ref)
		}
		bound, err := tcm.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for %s: %w", errno.ErrModelCall, ref, err)
		}
		chat = bound
	}

	msgs := make([]*schema.Message, 0, len(req.History)+1)
	msgs = append(msgs, schema.SystemMessage(systemPrompt(req)))
	msgs = append(msgs, schemaHistory(req.History)...)

	out, err := chat.Generate(ctx, msgs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", errno.ErrModelCall, ref, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s returned no message", errno.ErrModelCall, ref)
	}

	return toDecision(req.Agent.Name(), out, handoffByTool), nil
}

func toDecision(agent string, out *schema.Message, handoffByTool map[string]string) *Decision {
	dec := &Decision{Usage: usageOf(out)}

	call, n := firstToolCall(out)
	if call == nil {
		dec.Kind = DecisionFinalAnswer
		dec.Content = out.Content
		return dec
	}
	if n > 1 {
		logger.WarnX(pkg.ModuleName, "[Decider] %s requested %d tool calls, only the first is executed", agent, n)
	}

	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	if target, ok := handoffByTool[call.Name]; ok {
		dec.Kind = DecisionHandoff
		dec.HandoffTarget = target
		dec.HandoffCallID = call.ID
		return dec
	}
	if strings.HasPrefix(call.Name, HandoffToolPrefix) {
		// A transfer to an agent that was not offered; the runner rejects it.
		dec.Kind = DecisionHandoff
		dec.HandoffTarget = strings.TrimPrefix(call.Name, HandoffToolPrefix)
		dec.HandoffCallID = call.ID
		return dec
	}
	dec.Kind = DecisionToolCall
	dec.ToolCall = call
	return dec
}

func usageOf(out *schema.Message) *entity.TokenUsage {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return nil
	}
	u := out.ResponseMeta.Usage
	return &entity.TokenUsage{
		PromptTokens:     int64(u.PromptTokens),
		CompletionTokens: int64(u.CompletionTokens),
		TotalTokens:      int64(u.TotalTokens),
	}
}

func handoffToolDesc(h HandoffOption) string {
	desc := "Hand off to the " + h.Name + " agent to handle the request."
	if h.Description != "" {
		desc += " " + h.Description
	}
	return desc
}

func systemPrompt(req *ModelRequest) string {
	var b strings.Builder
	b.WriteString(req.Instructions)

	if len(req.Handoffs) > 0 {
		b.WriteString("\n\nYou can transfer the conversation to these agents by calling their transfer tool:\n")
		for _, h := range req.Handoffs {
			fmt.Fprintf(&b, "- %s (%s)", h.Name, HandoffToolName(h.Name))
			if h.Description != "" {
				b.WriteString(": " + h.Description)
			}
			b.WriteByte('\n')
		}
	}

	if req.OutputSchema != "" {
		b.WriteString("\n\nYour final answer must be a single JSON object that matches this JSON Schema, with no other text:\n")
		b.WriteString(req.OutputSchema)
	}
	return b.String()
}
