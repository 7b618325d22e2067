// Package trace scopes one pipeline run for diagnostics. A span records
// hand-offs and tool calls; it never influences the run.
package trace

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/pkg/logger"
)

const instrumentationName = "github.com/kiosk404/conductor"

// Tracer opens run spans.
type Tracer struct {
	tracer  oteltrace.Tracer
	metrics *Metrics
}

// NewTracer wraps tp. A nil tp uses the global provider; a nil metrics
// disables metrics.
func NewTracer(tp oteltrace.TracerProvider, metrics *Metrics) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:  tp.Tracer(instrumentationName),
		metrics: metrics,
	}
}

type spanKey struct{}

// StartSpan opens a span named name and stores it in the returned context.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, otelSpan := t.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
	s := &Span{
		name:    name,
		span:    otelSpan,
		metrics: t.metrics,
		start:   time.Now(),
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// SpanFromContext returns the span opened by StartSpan, or nil. Span
// methods are safe on a nil receiver.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// Span is one run's trace scope.
type Span struct {
	name    string
	span    oteltrace.Span
	metrics *Metrics
	start   time.Time

	mu        sync.Mutex
	handoffs  []entity.HandoffRecord
	toolCalls int
	usage     entity.TokenUsage
	info      *entity.TraceInfo
}

// RecordHandoff notes a control transfer.
func (s *Span) RecordHandoff(from, to string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info != nil {
		return
	}

	s.handoffs = append(s.handoffs, entity.HandoffRecord{From: from, To: to, At: time.Now()})
	s.span.AddEvent("handoff", oteltrace.WithAttributes(
		attribute.String("handoff.from", from),
		attribute.String("handoff.to", to),
	))
	if s.metrics != nil {
		s.metrics.HandoffsTotal.WithLabelValues(from, to).Inc()
	}
}

// RecordToolCall notes a tool invocation. server is empty when no bound
// server offered the tool.
func (s *Span) RecordToolCall(agent, server, tool string, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info != nil {
		return
	}

	s.toolCalls++
	outcome := "ok"
	attrs := []attribute.KeyValue{
		attribute.String("agent.name", agent),
		attribute.String("tool.server", server),
		attribute.String("tool.name", tool),
	}
	if err != nil {
		outcome = "error"
		attrs = append(attrs, attribute.String("tool.error", err.Error()))
	}
	s.span.AddEvent("tool_call", oteltrace.WithAttributes(attrs...))
	if s.metrics != nil {
		s.metrics.ToolCallsTotal.WithLabelValues(server, tool, outcome).Inc()
	}
}

// RecordUsage accumulates token usage.
func (s *Span) RecordUsage(u *entity.TokenUsage) {
	if s == nil || u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.Add(u)
}

// End finalizes the span once. Later calls return the first summary.
func (s *Span) End(outcome entity.RunStatus, err error) *entity.TraceInfo {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info != nil {
		return s.info
	}

	duration := time.Since(s.start)
	sc := s.span.SpanContext()
	s.info = &entity.TraceInfo{
		Name:      s.name,
		Outcome:   string(outcome),
		Handoffs:  append([]entity.HandoffRecord(nil), s.handoffs...),
		ToolCalls: s.toolCalls,
		StartedAt: s.start,
		Duration:  duration,
	}
	if sc.HasTraceID() {
		s.info.TraceID = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		s.info.SpanID = sc.SpanID().String()
	}

	s.span.SetAttributes(
		attribute.String("run.outcome", string(outcome)),
		attribute.Int("run.handoffs", len(s.handoffs)),
		attribute.Int("run.tool_calls", s.toolCalls),
		attribute.Int64("run.tokens", s.usage.TotalTokens),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()

	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(string(outcome)).Inc()
		s.metrics.RunDuration.WithLabelValues(s.name).Observe(duration.Seconds())
		s.metrics.observeUsage(&s.usage)
	}

	logger.Info("[Trace] %s finished: outcome=%s handoffs=%d tool_calls=%d duration=%s",
		s.name, outcome, len(s.handoffs), s.toolCalls, duration.Round(time.Millisecond))
	return s.info
}
