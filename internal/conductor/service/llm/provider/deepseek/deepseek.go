package deepseek

import (
	"context"

	einoDeepseek "github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/helper"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

const Name = "deepseek"

var _ spi.ChatModelPlugin = (*Plugin)(nil)

type Plugin struct {
	helper.BasePlugin
}

func New() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: Name},
	}
}

// BuildChatModel uses the DeepSeek SDK, which exposes reasoning content
// that the OpenAI-compatible client drops.
func (p *Plugin) BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	conf := &einoDeepseek.ChatModelConfig{
		APIKey:             conn.APIKey,
		BaseURL:            conn.BaseURL,
		Model:              conn.Model,
		MaxTokens:          opts.EffectiveMaxTokens(conn, 0),
		ResponseFormatType: einoDeepseek.ResponseFormatTypeText,
	}
	if opts.JSONOutput {
		conf.ResponseFormatType = einoDeepseek.ResponseFormatTypeJSONObject
	}
	return einoDeepseek.NewChatModel(ctx, conf)
}

func (p *Plugin) DefaultConfig() *options.ProviderConfig {
	return &options.ProviderConfig{
		BaseURL: "https://api.deepseek.com/v1",
		APIKey:  "${DEEPSEEK_API_KEY}",
		Models: []options.ModelDefinition{
			{ID: "deepseek-chat", Name: "Deepseek V3", MaxTokens: 8192},
			{ID: "deepseek-reasoner", Name: "Deepseek R1", Reasoning: true, MaxTokens: 8192},
		},
	}
}
