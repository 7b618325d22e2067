package entity

// ChatOptions tunes the chat model built for one agent. The zero value
// keeps the provider defaults. It is comparable, so built models are cached
// per reference and option set.
type ChatOptions struct {
	// MaxTokens caps one completion. 0 uses the model definition.
	MaxTokens int `json:"max_tokens,omitempty"`
	// JSONOutput asks for a bare JSON object answer on providers that have
	// a JSON response mode. Agents with an output contract set it; the
	// contract is still validated after the answer arrives.
	JSONOutput bool `json:"json_output,omitempty"`
}

// EffectiveMaxTokens picks the completion cap for conn.
func (o ChatOptions) EffectiveMaxTokens(conn *Connection, fallback int) int {
	switch {
	case o.MaxTokens > 0:
		return o.MaxTokens
	case conn.MaxTokens > 0:
		return conn.MaxTokens
	default:
		return fallback
	}
}
