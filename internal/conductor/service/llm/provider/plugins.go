package provider

import (
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/anthropic"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/deepseek"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/gemini"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/ollama"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/openai"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/qwen"
)

// NewInTreeRegistry registers the built-in providers.
func NewInTreeRegistry() *Registry {
	r, err := NewRegistry(
		anthropic.New,
		openai.New,
		gemini.New,
		deepseek.New,
		openai.NewMoonshot,
		qwen.New,
		ollama.New,
	)
	if err != nil {
		panic(err)
	}
	return r
}
