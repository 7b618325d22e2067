package options

import (
	"fmt"
	"sort"

	"github.com/spf13/pflag"

	"github.com/kiosk404/conductor/internal/pkg/envref"
)

// ModelOptions configures the model providers available to agents.
type ModelOptions struct {
	// Mode is "merge" (user providers overlay the built-in defaults) or
	// "replace" (only user providers are used).
	Mode      string                     `json:"mode" mapstructure:"mode"`
	Providers map[string]*ProviderConfig `json:"providers" mapstructure:"providers"`
}

type ProviderConfig struct {
	BaseURL string `json:"base-url" mapstructure:"base-url"`
	// APIKey is usually a "${VAR}" reference, resolved when a model is built.
	APIKey string            `json:"api-key" mapstructure:"api-key"`
	Models []ModelDefinition `json:"models" mapstructure:"models"`

	// Azure OpenAI.
	ByAzure    bool   `json:"by-azure" mapstructure:"by-azure"`
	APIVersion string `json:"api-version" mapstructure:"api-version"`

	// Gemini on Vertex AI.
	Project  string `json:"project" mapstructure:"project"`
	Location string `json:"location" mapstructure:"location"`
}

type ModelDefinition struct {
	ID        string `json:"id" mapstructure:"id"`
	Name      string `json:"name" mapstructure:"name"`
	Reasoning bool   `json:"reasoning" mapstructure:"reasoning"`
	MaxTokens int    `json:"max-tokens" mapstructure:"max-tokens"`
}

// Model returns the definition with the given ID, if any.
func (p *ProviderConfig) Model(id string) (ModelDefinition, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDefinition{}, false
}

func NewModelOptions() *ModelOptions {
	return &ModelOptions{
		Mode:      "merge",
		Providers: make(map[string]*ProviderConfig),
	}
}

func (o *ModelOptions) Validate() []error {
	var errs []error
	if o.Mode != "merge" && o.Mode != "replace" {
		errs = append(errs, fmt.Errorf("invalid model mode %q, must be 'merge' or 'replace'", o.Mode))
	}

	ids := make([]string, 0, len(o.Providers))
	for id := range o.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := o.Providers[id]
		if p == nil {
			errs = append(errs, fmt.Errorf("provider %q: empty configuration", id))
			continue
		}
		for _, m := range p.Models {
			if m.ID == "" {
				errs = append(errs, fmt.Errorf("provider %q: model id is required", id))
			}
		}
	}
	return errs
}

func (o *ModelOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Mode, "models.mode", o.Mode, "Model provider merge mode: 'merge' or 'replace'.")
}

// Redacted returns a copy safe to print: literal API keys are masked,
// "${VAR}" references are kept.
func (o *ModelOptions) Redacted() *ModelOptions {
	out := &ModelOptions{Mode: o.Mode, Providers: make(map[string]*ProviderConfig, len(o.Providers))}
	for id, p := range o.Providers {
		if p == nil {
			continue
		}
		cp := *p
		if cp.APIKey != "" && !envref.IsRef(cp.APIKey) {
			cp.APIKey = "******"
		}
		out.Providers[id] = &cp
	}
	return out
}
