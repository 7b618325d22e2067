package entity

import (
	"fmt"
	"strings"
)

// ModelRef is a reference to a model served by a provider.
type ModelRef struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

func (r ModelRef) String() string {
	return fmt.Sprintf("%s/%s", r.ProviderID, r.ModelID)
}

func (r ModelRef) IsZero() bool {
	return r.ProviderID == "" && r.ModelID == ""
}

// ParseModelRef parses "provider/model". The model part may itself contain
// slashes (e.g. "ollama/library/qwen3").
func ParseModelRef(s string) (ModelRef, error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || provider == "" || model == "" {
		return ModelRef{}, fmt.Errorf("invalid model reference %q, want provider/model", s)
	}
	return ModelRef{ProviderID: provider, ModelID: model}, nil
}
