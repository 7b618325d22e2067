package conductor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kiosk404/conductor/internal/conductor/config"
	"github.com/kiosk404/conductor/internal/conductor/options"
	"github.com/kiosk404/conductor/internal/conductor/pipeline"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/service/runtime"
	"github.com/kiosk404/conductor/internal/conductor/service/llm"
	"github.com/kiosk404/conductor/internal/conductor/service/mcp"
	"github.com/kiosk404/conductor/internal/conductor/service/trace"
	"github.com/kiosk404/conductor/pkg/logger"
)

// Run executes the configured pipeline once and prints the result to out.
// A run that does not complete is returned as an error after printing.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	servers, err := (&mcp.Config{
		MCPConfig:        cfg.MCP,
		HandshakeTimeout: cfg.MCPOptions.HandshakeTimeout,
	}).Complete().New(ctx)
	if err != nil {
		return err
	}

	models, err := (&llm.Config{ModelOptions: cfg.ModelOptions}).Complete().New(ctx)
	if err != nil {
		return err
	}

	tp, err := trace.NewProvider(ctx, cfg.TraceOptions.ProviderConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("[Trace] shutdown: %v", err)
		}
	}()
	metrics := trace.NewMetrics()

	text := cfg.PipelineOptions.Output == options.OutputText
	deps := pipeline.Deps{
		Servers: servers,
		Models:  models,
		Tracer:  trace.NewTracer(tp, metrics),
	}
	if text {
		deps.RunnerOptions = append(deps.RunnerOptions, runtime.WithEventSink(progressPrinter(out)))
	}

	res := pipeline.RunAgentPipeline(ctx, deps, cfg.Pipeline, cfg.PipelineOptions.Request)

	if text {
		printResult(out, res)
	} else if err := printJSON(out, res); err != nil {
		return err
	}

	if path := cfg.TraceOptions.MetricsFile; path != "" {
		if err := writeMetrics(path, metrics); err != nil {
			logger.Warn("[Trace] write metrics: %v", err)
		}
	}

	if !res.Succeeded() {
		return fmt.Errorf("run %s: %v", res.Status, res.Error)
	}
	return nil
}

func writeMetrics(path string, m *trace.Metrics) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WritePrometheus(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
