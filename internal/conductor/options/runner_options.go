package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/service/runtime"
)

// RunnerOptions bounds a single run.
type RunnerOptions struct {
	MaxHandoffs      int           `json:"max-handoffs" mapstructure:"max-handoffs"`
	MaxOutputRetries int           `json:"max-output-retries" mapstructure:"max-output-retries"`
	MaxTurns         int           `json:"max-turns" mapstructure:"max-turns"`
	ModelTimeout     time.Duration `json:"model-timeout" mapstructure:"model-timeout"`
	RunTimeout       time.Duration `json:"run-timeout" mapstructure:"run-timeout"`
}

func NewRunnerOptions() *RunnerOptions {
	return &RunnerOptions{
		MaxHandoffs:  runtime.DefaultMaxHandoffs,
		MaxTurns:     runtime.DefaultMaxTurns,
		ModelTimeout: 2 * time.Minute,
	}
}

func (o *RunnerOptions) Validate() []error {
	var errs []error
	if o.MaxHandoffs <= 0 {
		errs = append(errs, errors.New("runner.max-handoffs must be positive"))
	}
	if o.MaxTurns <= 0 {
		errs = append(errs, errors.New("runner.max-turns must be positive"))
	}
	if o.MaxOutputRetries < 0 {
		errs = append(errs, errors.New("runner.max-output-retries must not be negative"))
	}
	if o.ModelTimeout < 0 || o.RunTimeout < 0 {
		errs = append(errs, errors.New("runner timeouts must not be negative"))
	}
	return errs
}

func (o *RunnerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxHandoffs, "runner.max-handoffs", o.MaxHandoffs, "Maximum number of hand-offs in one run.")
	fs.IntVar(&o.MaxOutputRetries, "runner.max-output-retries", o.MaxOutputRetries,
		"How often an answer that does not match the output contract is sent back to the model.")
	fs.IntVar(&o.MaxTurns, "runner.max-turns", o.MaxTurns, "Maximum number of model calls in one run.")
	fs.DurationVar(&o.ModelTimeout, "runner.model-timeout", o.ModelTimeout, "Timeout of a single model call. 0 disables it.")
	fs.DurationVar(&o.RunTimeout, "runner.run-timeout", o.RunTimeout, "Timeout of the whole run. 0 disables it.")
}

// RunConfig converts the options to runner limits.
func (o *RunnerOptions) RunConfig() runtime.RunConfig {
	return runtime.RunConfig{
		MaxHandoffs:      o.MaxHandoffs,
		MaxOutputRetries: o.MaxOutputRetries,
		MaxTurns:         o.MaxTurns,
		ModelTimeout:     o.ModelTimeout,
		RunTimeout:       o.RunTimeout,
	}
}
