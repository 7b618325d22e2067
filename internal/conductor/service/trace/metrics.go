package trace

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
)

// Metrics are the run counters fed by finished spans.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	HandoffsTotal  *prometheus.CounterVec
	ToolCallsTotal *prometheus.CounterVec
	TokensTotal    *prometheus.CounterVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_runs_total",
				Help: "Agent runs by final status.",
			},
			[]string{"status"}, // completed | failed | cancelled
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_run_duration_seconds",
				Help:    "Agent run duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trace"},
		),
		HandoffsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_handoffs_total",
				Help: "Hand-offs between agents.",
			},
			[]string{"from", "to"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_tool_calls_total",
				Help: "Tool calls by server, tool and outcome.",
			},
			[]string{"server", "tool", "outcome"}, // ok | error
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_llm_tokens_total",
				Help: "Model tokens consumed.",
			},
			[]string{"direction"}, // input | output
		),
	}
	m.Registry.MustRegister(m.RunsTotal, m.RunDuration, m.HandoffsTotal, m.ToolCallsTotal, m.TokensTotal)
	return m
}

func (m *Metrics) observeUsage(u *entity.TokenUsage) {
	if m == nil || u == nil {
		return
	}
	m.TokensTotal.WithLabelValues("input").Add(float64(u.PromptTokens))
	m.TokensTotal.WithLabelValues("output").Add(float64(u.CompletionTokens))
}

// WritePrometheus writes the registry in the Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
