package entity

// ThinkingType controls reasoning output for providers that support it.
type ThinkingType int

const (
	ThinkingType_Default ThinkingType = iota
	ThinkingType_Enable
	ThinkingType_Disable
)

// Connection is everything a provider plugin needs to build a chat model
// for one model ID.
type Connection struct {
	ProviderID   string
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	ThinkingType ThinkingType

	// Azure OpenAI only.
	ByAzure    bool
	APIVersion string

	// Gemini only.
	GeminiProject  string
	GeminiLocation string
}
