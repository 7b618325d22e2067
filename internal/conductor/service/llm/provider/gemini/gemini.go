package gemini

import (
	"context"
	"fmt"

	einoGemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/helper"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

const Name = "gemini"

var _ spi.ChatModelPlugin = (*Plugin)(nil)

type Plugin struct {
	helper.BasePlugin
}

func New() spi.ChatModelPlugin {
	return &Plugin{
		BasePlugin: helper.BasePlugin{ID: Name},
	}
}

// BuildChatModel talks to Google's generative AI API through genai; Vertex
// AI is used when a project is configured.
func (p *Plugin) BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  conn.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if conn.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = conn.BaseURL
	}
	if conn.GeminiProject != "" {
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = conn.GeminiProject
		clientCfg.Location = conn.GeminiLocation
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client for %s/%s: %w", conn.ProviderID, conn.Model, err)
	}

	cfg := &einoGemini.Config{
		Client: client,
		Model:  conn.Model,
	}
	if n := opts.EffectiveMaxTokens(conn, 0); n > 0 {
		cfg.MaxTokens = &n
	}
	if conn.ThinkingType != entity.ThinkingType_Default {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: conn.ThinkingType == entity.ThinkingType_Enable}
	}
	return einoGemini.NewChatModel(ctx, cfg)
}

func (p *Plugin) DefaultConfig() *options.ProviderConfig {
	return &options.ProviderConfig{
		APIKey: "${GOOGLE_API_KEY}",
		Models: []options.ModelDefinition{
			{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Reasoning: true, MaxTokens: 65536},
			{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Reasoning: true, MaxTokens: 65536},
			{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", MaxTokens: 8192},
		},
	}
}
