package options

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kiosk404/conductor/internal/conductor/pipeline"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/service/runtime"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

// PipelineOptions holds the agent graph and the request to run. Agents are
// usually set in the config file; the defaults are the meal-planning
// pipeline.
type PipelineOptions struct {
	Name       string                     `json:"name" mapstructure:"name"`
	EntryAgent string                     `json:"entry-agent" mapstructure:"entry-agent"`
	Agents     []pipeline.AgentDefinition `json:"agents" mapstructure:"agents"`
	Request    string                     `json:"request" mapstructure:"request"`
	// Output is "text" or "json".
	Output string `json:"output" mapstructure:"output"`
}

func NewPipelineOptions() *PipelineOptions {
	def := pipeline.DefaultConfig()
	return &PipelineOptions{
		Name:       def.Name,
		EntryAgent: def.EntryAgent,
		Agents:     def.Agents,
		Request:    pipeline.DefaultRequest,
		Output:     OutputText,
	}
}

func (o *PipelineOptions) Validate() []error {
	var errs []error
	if o.Request == "" {
		errs = append(errs, errors.New("pipeline.request is required"))
	}
	if o.Output != OutputText && o.Output != OutputJSON {
		errs = append(errs, fmt.Errorf("pipeline.output must be %s or %s, got %q", OutputText, OutputJSON, o.Output))
	}
	if err := o.Config(runtime.DefaultRunConfig()).Validate(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (o *PipelineOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Request, "pipeline.request", "r", o.Request, "The request to run through the agents.")
	fs.StringVar(&o.EntryAgent, "pipeline.entry-agent", o.EntryAgent, "The agent every request starts with.")
	fs.StringVar(&o.Name, "pipeline.name", o.Name, "Trace name of the run. Defaults to the entry agent.")
	fs.StringVarP(&o.Output, "pipeline.output", "o", o.Output, "Result format: text or json.")
}

// Config builds the pipeline configuration with the given limits.
func (o *PipelineOptions) Config(limits runtime.RunConfig) *pipeline.Config {
	return &pipeline.Config{
		Name:       o.Name,
		EntryAgent: o.EntryAgent,
		Agents:     o.Agents,
		Limits:     limits,
	}
}
