package pipeline

import (
	"fmt"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/contract"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/service/runtime"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	llmEntity "github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
)

// OutputDefinition is the configuration form of an output contract.
type OutputDefinition struct {
	Name   string                     `json:"name" mapstructure:"name"`
	Fields []contract.FieldDefinition `json:"fields" mapstructure:"fields"`
}

// AgentDefinition is the configuration form of an agent. Hand-off targets
// refer to agents defined earlier in the list.
type AgentDefinition struct {
	Name               string            `json:"name" mapstructure:"name"`
	Instructions       string            `json:"instructions" mapstructure:"instructions"`
	Model              string            `json:"model" mapstructure:"model"`
	MCPServers         []string          `json:"mcp_servers,omitempty" mapstructure:"mcp_servers"`
	Handoffs           []string          `json:"handoffs,omitempty" mapstructure:"handoffs"`
	HandoffDescription string            `json:"handoff_description,omitempty" mapstructure:"handoff_description"`
	Output             *OutputDefinition `json:"output,omitempty" mapstructure:"output"`
}

// Config describes one agent pipeline.
type Config struct {
	// Name labels the trace span. Empty uses the entry agent's name.
	Name string `json:"name,omitempty" mapstructure:"name"`
	// EntryAgent is where every request starts.
	EntryAgent string            `json:"entry_agent" mapstructure:"entry_agent"`
	Agents     []AgentDefinition `json:"agents" mapstructure:"agents"`

	Limits runtime.RunConfig `json:"limits" mapstructure:"limits"`
}

// Validate checks the definitions without building anything.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("%w: pipeline defines no agents", errno.ErrInvalidAgent)
	}

	defined := make(map[string]struct{}, len(c.Agents))
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("%w: agent #%d has no name", errno.ErrInvalidAgent, i)
		}
		if _, dup := defined[a.Name]; dup {
			return fmt.Errorf("%w: %q", errno.ErrDuplicateAgentName, a.Name)
		}
		if _, err := llmEntity.ParseModelRef(a.Model); err != nil {
			return fmt.Errorf("%w: agent %q: %v", errno.ErrInvalidAgent, a.Name, err)
		}
		byTool := make(map[string]string, len(a.Handoffs))
		for _, h := range a.Handoffs {
			if _, ok := defined[h]; !ok {
				return fmt.Errorf("%w: agent %q hands off to %q, which must be defined before it", errno.ErrInvalidAgent, a.Name, h)
			}
			tool := entity.HandoffToolName(h)
			if other, clash := byTool[tool]; clash && other != h {
				return fmt.Errorf("%w: agent %q: hand-off targets %q and %q both map to tool %q", errno.ErrInvalidAgent, a.Name, other, h, tool)
			}
			byTool[tool] = h
		}
		if a.Output != nil && a.Output.Name == "" {
			return fmt.Errorf("%w: agent %q output has no name", errno.ErrInvalidAgent, a.Name)
		}
		defined[a.Name] = struct{}{}
	}

	if _, ok := defined[c.EntryAgent]; !ok {
		return fmt.Errorf("%w: entry agent %q is not defined", errno.ErrInvalidAgent, c.EntryAgent)
	}
	return nil
}

// ServerNames returns the servers any agent binds, first use first.
func (c *Config) ServerNames() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, a := range c.Agents {
		for _, s := range a.MCPServers {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			names = append(names, s)
		}
	}
	return names
}

// ModelRefs returns the model of every agent. Call Validate first.
func (c *Config) ModelRefs() []llmEntity.ModelRef {
	refs := make([]llmEntity.ModelRef, 0, len(c.Agents))
	for _, a := range c.Agents {
		if ref, err := llmEntity.ParseModelRef(a.Model); err == nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (c *Config) traceName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.EntryAgent
}

// DefaultRequest is the sample meal-planning request.
const DefaultRequest = "I would like to make at least one vegetarian recipe and others could be with chicken or fish"

// DefaultConfig is the meal-planning pipeline: IngredientExtractor hands
// off to PublicHolidayAgent, which checks next week's Victorian public
// holidays.
func DefaultConfig() *Config {
	return &Config{
		EntryAgent: "IngredientExtractor",
		Agents: []AgentDefinition{
			{
				Name: "PublicHolidayAgent",
				Instructions: "You use the get_dates tools to determine what days of the week is a public holiday in Victoria, Australia.\n" +
					"The current datetime is {{.Now.Format \"2006-01-02 15:04:05\"}}",
				Model:              "openai/gpt-4o-mini",
				MCPServers:         []string{"holidays"},
				HandoffDescription: "Finds which weekdays are public holidays in Victoria, Australia.",
				Output: &OutputDefinition{
					Name: "PublicHolidays",
					Fields: []contract.FieldDefinition{
						{Name: "monday", Type: "boolean"},
						{Name: "tuesday", Type: "boolean"},
						{Name: "wednesday", Type: "boolean"},
						{Name: "thursday", Type: "boolean"},
						{Name: "friday", Type: "boolean"},
					},
				},
			},
			{
				Name: "IngredientExtractor",
				Instructions: "You receive input from the user for the types of recipes they would like to make for the week.\n" +
					"Extract the list of base ingredients from the request and return the output. " +
					"After you have extracted the ingredients, you handoff to the Public Holiday Agent",
				Model:    "openai/gpt-4o-mini",
				Handoffs: []string{"PublicHolidayAgent"},
				Output: &OutputDefinition{
					Name: "BaseIngredients",
					Fields: []contract.FieldDefinition{{
						Name: "ingredients",
						Type: "array",
						Items: &contract.FieldDefinition{
							Type:   "object",
							Fields: []contract.FieldDefinition{{Name: "ingredient_name", Type: "string"}},
						},
					}},
				},
			},
		},
		Limits: runtime.DefaultRunConfig(),
	}
}
