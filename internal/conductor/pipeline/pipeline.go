// Package pipeline runs one request through a configured agent graph: it
// checks credentials, connects the tool servers the agents need, builds the
// agents, runs them under a trace span and tears everything down again.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/contract"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/service/runtime"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/internal/conductor/service/llm"
	llmEntity "github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/mcp"
	"github.com/kiosk404/conductor/internal/conductor/service/trace"
	"github.com/kiosk404/conductor/internal/pkg/envref"
	"github.com/kiosk404/conductor/pkg/logger"
)

// Deps are the long-lived collaborators of a pipeline run.
type Deps struct {
	// Servers is the tool server catalog.
	Servers *mcp.Module
	// Models checks model credentials and, unless Decider is set, serves
	// the chat models.
	Models *llm.Module
	// Decider overrides the model capability. nil uses a ChatModelDecider
	// over Models.
	Decider runtime.Decider
	// Tracer opens the run span. nil uses the global OpenTelemetry provider
	// without metrics.
	Tracer *trace.Tracer
	// EnvLookup resolves tool server credentials. nil uses the process
	// environment.
	EnvLookup envref.LookupFunc

	RunnerOptions []runtime.RunnerOption
}

// RunAgentPipeline runs request through cfg. It never returns nil: every
// failure, including those before the first model call, is reported in the
// result's Status and Error. Every tool server process started for the run
// is closed before it returns.
func RunAgentPipeline(ctx context.Context, deps Deps, cfg *Config, request string) *entity.RunResult {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = trace.NewTracer(nil, nil)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, span := tracer.StartSpan(ctx, cfg.traceName(),
		attribute.String("pipeline.entry_agent", cfg.EntryAgent),
		attribute.Int("pipeline.agents", len(cfg.Agents)),
	)

	res, err := run(ctx, deps, cfg, request)
	if res == nil {
		res = failedResult(err)
	}
	res.Trace = span.End(res.Status, err)
	return res
}

func run(ctx context.Context, deps Deps, cfg *Config, request string) (*entity.RunResult, error) {
	if deps.Servers == nil || (deps.Models == nil && deps.Decider == nil) {
		return nil, fmt.Errorf("%w: pipeline needs a server catalog and a model source", errno.ErrInvalidAgent)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	specs, err := deps.Servers.Specs(cfg.ServerNames())
	if err != nil {
		return nil, err
	}

	// Every credential is checked before any process is launched.
	var credErrs []error
	if deps.Models != nil {
		if err := deps.Models.RequiredCredentials(cfg.ModelRefs()); err != nil {
			credErrs = append(credErrs, err)
		}
	}
	if err := mcp.PreflightCredentials(specs, deps.EnvLookup); err != nil {
		credErrs = append(credErrs, err)
	}
	if len(credErrs) > 0 {
		return nil, errors.Join(credErrs...)
	}

	decider := deps.Decider
	if decider == nil {
		decider = runtime.NewChatModelDecider(deps.Models)
	}
	runner := runtime.NewRunner(decider, cfg.Limits, deps.RunnerOptions...)

	var opts []mcp.RegistryOption
	if deps.EnvLookup != nil {
		opts = append(opts, mcp.WithEnvLookup(deps.EnvLookup))
	}

	var (
		res    *entity.RunResult
		runErr error
	)
	err = deps.Servers.WithRegistry(ctx, specs, func(ctx context.Context, reg *mcp.Registry) error {
		entry, err := buildAgents(cfg, reg)
		if err != nil {
			return err
		}
		res, runErr = runner.Run(ctx, entry, request)
		return runErr
	}, opts...)

	if res == nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, runErr) {
		logger.Warn("[Pipeline] run %s finished but teardown failed: %v", res.RunID, err)
	}
	return res, runErr
}

// buildAgents builds the agents in definition order so every hand-off
// target exists before the agents that reference it.
func buildAgents(cfg *Config, reg mcp.Manager) (*entity.Agent, error) {
	built := make(map[string]*entity.Agent, len(cfg.Agents))
	for _, def := range cfg.Agents {
		ref, err := llmEntity.ParseModelRef(def.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: agent %q: %v", errno.ErrInvalidAgent, def.Name, err)
		}
		servers, err := reg.HandlesFor(def.MCPServers)
		if err != nil {
			return nil, err
		}

		var out *contract.Contract
		if def.Output != nil {
			if out, err = contract.FromDefinitions(def.Output.Name, def.Output.Fields); err != nil {
				return nil, fmt.Errorf("%w: agent %q output: %v", errno.ErrInvalidAgent, def.Name, err)
			}
		}

		handoffs := make([]*entity.Agent, 0, len(def.Handoffs))
		for _, h := range def.Handoffs {
			target, ok := built[h]
			if !ok {
				return nil, fmt.Errorf("%w: agent %q hands off to undefined %q", errno.ErrInvalidAgent, def.Name, h)
			}
			handoffs = append(handoffs, target)
		}

		agent, err := entity.NewAgent(entity.AgentConfig{
			Name:               def.Name,
			Instructions:       def.Instructions,
			Model:              ref,
			ToolServers:        servers,
			OutputContract:     out,
			Handoffs:           handoffs,
			HandoffDescription: def.HandoffDescription,
		})
		if err != nil {
			return nil, err
		}
		built[def.Name] = agent
	}

	entry, ok := built[cfg.EntryAgent]
	if !ok {
		return nil, fmt.Errorf("%w: entry agent %q is not defined", errno.ErrInvalidAgent, cfg.EntryAgent)
	}
	return entry, nil
}

// failedResult reports a run that never reached the runner.
func failedResult(err error) *entity.RunResult {
	status := entity.RunStatusFailed
	if errors.Is(err, errno.ErrAborted) || errors.Is(err, context.Canceled) {
		status = entity.RunStatusCancelled
	}
	res := &entity.RunResult{Status: status, Usage: &entity.TokenUsage{}}
	if err != nil {
		res.Error = &entity.RunError{Kind: string(errno.KindOf(err)), Message: err.Error()}
	}
	logger.Error("[Pipeline] run failed before start: %v", err)
	return res
}
