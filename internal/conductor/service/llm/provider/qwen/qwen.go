package qwen

import (
	"context"

	"github.com/bytedance/gg/gptr"
	einoQwen "github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/helper"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

const Name = "qwen"

const defaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

var _ spi.ChatModelPlugin = (*Plugin)(nil)

type Plugin struct {
	helper.BasePlugin
}

func New() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: Name},
	}
}

// BuildChatModel goes through the DashScope SDK so reasoning models can
// toggle thinking.
func (p *Plugin) BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	baseURL := conn.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	conf := &einoQwen.ChatModelConfig{
		BaseURL:        baseURL,
		APIKey:         conn.APIKey,
		Model:          conn.Model,
		ResponseFormat: helper.OpenAIResponseFormat(opts),
	}
	if n := opts.EffectiveMaxTokens(conn, 0); n > 0 {
		conf.MaxTokens = gptr.Of(n)
	}
	if conn.ThinkingType != entity.ThinkingType_Default {
		conf.EnableThinking = gptr.Of(conn.ThinkingType == entity.ThinkingType_Enable)
	}
	return einoQwen.NewChatModel(ctx, conf)
}

func (p *Plugin) DefaultConfig() *options.ProviderConfig {
	return &options.ProviderConfig{
		BaseURL: defaultBaseURL,
		APIKey:  "${DASHSCOPE_API_KEY}",
		Models: []options.ModelDefinition{
			{ID: "qwen-plus", Name: "Qwen Plus", MaxTokens: 8192},
			{ID: "qwen-turbo", Name: "Qwen Turbo", MaxTokens: 8192},
			{ID: "qwen-max", Name: "Qwen Max", MaxTokens: 8192},
		},
	}
}
