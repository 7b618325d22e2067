package helper

import (
	"context"

	"github.com/bytedance/gg/gptr"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
)

const defaultMaxTokens = 4096

// NewOpenAICompatibleChatModel builds a chat model for any endpoint that
// speaks the OpenAI chat completions API (OpenAI, Azure OpenAI,
// Kimi/Moonshot and unknown providers).
func NewOpenAICompatibleChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error) {
	return einoOpenAI.NewChatModel(ctx, &einoOpenAI.ChatModelConfig{
		Model:          conn.Model,
		APIKey:         conn.APIKey,
		BaseURL:        conn.BaseURL,
		MaxTokens:      gptr.Of(opts.EffectiveMaxTokens(conn, defaultMaxTokens)),
		ResponseFormat: OpenAIResponseFormat(opts),
		ByAzure:        conn.ByAzure,
		APIVersion:     conn.APIVersion,
	})
}

// OpenAIResponseFormat selects JSON object mode for agents with an output
// contract.
func OpenAIResponseFormat(opts entity.ChatOptions) *einoOpenAI.ChatCompletionResponseFormat {
	if opts.JSONOutput {
		return &einoOpenAI.ChatCompletionResponseFormat{Type: einoOpenAI.ChatCompletionResponseFormatTypeJSONObject}
	}
	return &einoOpenAI.ChatCompletionResponseFormat{Type: einoOpenAI.ChatCompletionResponseFormatTypeText}
}
