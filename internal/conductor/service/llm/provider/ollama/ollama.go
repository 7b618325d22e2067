package ollama

import (
	"context"
	"encoding/json"

	"github.com/bytedance/gg/gptr"
	einoOllama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/helper"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

const Name = "ollama"

const defaultBaseURL = "http://127.0.0.1:11434"

var _ spi.ChatModelPlugin = (*Plugin)(nil)

type Plugin struct {
	helper.BasePlugin
}

func New() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: Name, Keyless: true},
	}
}

// BuildChatModel talks to a local Ollama server. MaxTokens is left to the
// server's num_predict setting.
func (p *Plugin) BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	conf := &einoOllama.ChatModelConfig{
		BaseURL: conn.BaseURL,
		Model:   conn.Model,
	}
	if conf.BaseURL == "" {
		conf.BaseURL = defaultBaseURL
	}
	if opts.JSONOutput {
		conf.Format = json.RawMessage(`"json"`)
	}
	if conn.ThinkingType != entity.ThinkingType_Default {
		conf.Thinking = &einoOllama.ThinkValue{Value: gptr.Of(conn.ThinkingType == entity.ThinkingType_Enable)}
	}
	return einoOllama.NewChatModel(ctx, conf)
}

func (p *Plugin) DefaultConfig() *options.ProviderConfig {
	return &options.ProviderConfig{
		BaseURL: defaultBaseURL,
		Models:  []options.ModelDefinition{},
	}
}
