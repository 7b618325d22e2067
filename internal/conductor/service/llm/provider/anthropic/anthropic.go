package anthropic

import (
	"context"

	"github.com/bytedance/gg/gptr"
	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/helper"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

const Name = "anthropic"

const defaultMaxTokens = 8192

var _ spi.ChatModelPlugin = (*Plugin)(nil)

type Plugin struct {
	helper.BasePlugin
}

func New() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: Name},
	}
}

// BuildChatModel ignores JSONOutput: Claude has no JSON response mode, the
// contract prompt is all it gets.
func (p *Plugin) BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	cfg := &einoClaude.Config{
		APIKey:    conn.APIKey,
		Model:     conn.Model,
		MaxTokens: opts.EffectiveMaxTokens(conn, defaultMaxTokens),
	}
	if conn.BaseURL != "" {
		cfg.BaseURL = gptr.Of(conn.BaseURL)
	}
	return einoClaude.NewChatModel(ctx, cfg)
}

func (p *Plugin) DefaultConfig() *options.ProviderConfig {
	return &options.ProviderConfig{
		APIKey: "${ANTHROPIC_API_KEY}",
		Models: []options.ModelDefinition{
			{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Reasoning: true, MaxTokens: 64000},
			{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", MaxTokens: 64000},
		},
	}
}
