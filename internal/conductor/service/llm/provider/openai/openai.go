package openai

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/helper"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

const (
	Name         = "openai"
	MoonshotName = "kimi"
)

var _ spi.ChatModelPlugin = (*Plugin)(nil)

// Plugin serves every provider that speaks the OpenAI chat completions API.
type Plugin struct {
	helper.BasePlugin
	defaults options.ProviderConfig
}

func New() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: Name},
		defaults: options.ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			APIKey:  "${OPENAI_API_KEY}",
			Models: []options.ModelDefinition{
				{ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 8192},
				{ID: "gpt-4o-mini", Name: "GPT-4o Mini", MaxTokens: 8192},
				{ID: "gpt-4.1", Name: "GPT-4.1", MaxTokens: 8192},
			},
		},
	}
}

// NewMoonshot serves Kimi models through Moonshot's compatible endpoint.
func NewMoonshot() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: MoonshotName},
		defaults: options.ProviderConfig{
			BaseURL: "https://api.moonshot.cn/v1",
			APIKey:  "${MOONSHOT_API_KEY}",
			Models: []options.ModelDefinition{
				{ID: "kimi-k2-0905-preview", Name: "Kimi K2", MaxTokens: 8192},
			},
		},
	}
}

// NewCompatible serves a provider without a plugin of its own. Its base
// URL and key come entirely from user configuration.
func NewCompatible(id string) spi.ChatModelPlugin {
	return &Plugin{BasePlugin: helper.BasePlugin{ID: id}}
}

func (p *Plugin) BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	return helper.NewOpenAICompatibleChatModel(ctx, conn, opts)
}

func (p *Plugin) DefaultConfig() *options.ProviderConfig {
	cfg := p.defaults
	cfg.Models = append([]options.ModelDefinition(nil), p.defaults.Models...)
	return &cfg
}
