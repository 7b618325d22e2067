package spi

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/pkg/options"
)

// ChatModelPlugin builds Eino chat models for one provider.
type ChatModelPlugin interface {
	// Name returns the provider ID used in model references, e.g. "openai"
	// in "openai/gpt-4o-mini".
	Name() string
	// DefaultConfig returns the built-in provider configuration.
	DefaultConfig() *options.ProviderConfig
	// RequiresAPIKey reports whether BuildChatModel needs a non-empty key.
	RequiresAPIKey() bool
	// BuildChatModel builds a chat model for conn. Options the provider
	// cannot honour are ignored.
	BuildChatModel(ctx context.Context, conn *entity.Connection, opts entity.ChatOptions) (model.BaseChatModel, error)
}

// PluginFactory creates a fresh plugin instance.
type PluginFactory func() ChatModelPlugin
