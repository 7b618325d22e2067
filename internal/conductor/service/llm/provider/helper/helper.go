package helper

import (
	"github.com/kiosk404/conductor/internal/pkg/options"
)

// BasePlugin carries what every provider plugin shares. Plugins embed it
// and add BuildChatModel.
type BasePlugin struct {
	ID string
	// Keyless marks providers that run without an API key (local servers).
	Keyless bool
}

func (b *BasePlugin) Name() string { return b.ID }

func (b *BasePlugin) DefaultConfig() *options.ProviderConfig {
	return &options.ProviderConfig{}
}

func (b *BasePlugin) RequiresAPIKey() bool { return !b.Keyless }
