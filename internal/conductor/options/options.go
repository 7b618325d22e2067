package options

import (
	genericoptions "github.com/kiosk404/conductor/internal/pkg/options"
	"github.com/kiosk404/conductor/pkg/utils/cliflag"
	"github.com/kiosk404/conductor/pkg/utils/json"
)

type Options struct {
	LogOptions      *LogOptions                  `json:"log"      mapstructure:"log"`
	ModelOptions    *genericoptions.ModelOptions `json:"models"   mapstructure:"models"`
	MCPOptions      *MCPOptions                  `json:"mcp"      mapstructure:"mcp"`
	RunnerOptions   *RunnerOptions               `json:"runner"   mapstructure:"runner"`
	TraceOptions    *TraceOptions                `json:"trace"    mapstructure:"trace"`
	PipelineOptions *PipelineOptions             `json:"pipeline" mapstructure:"pipeline"`
}

func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.PipelineOptions.AddFlags(fss.FlagSet("pipeline"))
	o.RunnerOptions.AddFlags(fss.FlagSet("runner"))
	o.ModelOptions.AddFlags(fss.FlagSet("models"))
	o.MCPOptions.AddFlags(fss.FlagSet("mcp"))
	o.TraceOptions.AddFlags(fss.FlagSet("trace"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	return fss
}

func NewOptions() *Options {
	return &Options{
		LogOptions:      NewLogOptions(),
		ModelOptions:    genericoptions.NewModelOptions(),
		MCPOptions:      NewMCPOptions(),
		RunnerOptions:   NewRunnerOptions(),
		TraceOptions:    NewTraceOptions(),
		PipelineOptions: NewPipelineOptions(),
	}
}

// Validate collects the errors of every section.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.ModelOptions.Validate()...)
	errs = append(errs, o.MCPOptions.Validate()...)
	errs = append(errs, o.RunnerOptions.Validate()...)
	errs = append(errs, o.TraceOptions.Validate()...)
	errs = append(errs, o.PipelineOptions.Validate()...)
	return errs
}

// String masks literal API keys.
func (o *Options) String() string {
	redacted := *o
	redacted.ModelOptions = o.ModelOptions.Redacted()
	data, _ := json.Marshal(&redacted)

	return string(data)
}

// Complete set default Options.
func (o *Options) Complete() error {
	if o.PipelineOptions.EntryAgent == "" && len(o.PipelineOptions.Agents) > 0 {
		o.PipelineOptions.EntryAgent = o.PipelineOptions.Agents[len(o.PipelineOptions.Agents)-1].Name
	}
	return nil
}
