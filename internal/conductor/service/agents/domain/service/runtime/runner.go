package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/internal/conductor/service/trace"
	"github.com/kiosk404/conductor/pkg/logger"
)

const (
	DefaultMaxHandoffs = 10
	DefaultMaxTurns    = 32
)

// RunConfig bounds a run.
type RunConfig struct {
	// MaxHandoffs is the number of hand-offs a run may perform.
	MaxHandoffs int
	// MaxOutputRetries is how often a final answer that fails its contract
	// is sent back to the model. 0 fails on the first violation.
	MaxOutputRetries int
	// MaxTurns caps model calls per run.
	MaxTurns int
	// ModelTimeout bounds each model call. 0 means no per-call limit.
	ModelTimeout time.Duration
	// RunTimeout bounds the whole run. 0 means no limit.
	RunTimeout time.Duration
}

// DefaultRunConfig returns the default limits.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxHandoffs: DefaultMaxHandoffs,
		MaxTurns:    DefaultMaxTurns,
	}
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithEventSink streams run events to sink.
func WithEventSink(sink entity.EventSink) RunnerOption {
	return func(r *Runner) { r.events = sink }
}

// WithClock overrides the clock used to render instructions.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// Runner drives one request through an agent graph.
//
// Each turn asks the Decider for the active agent's next step:
//  1. ToolCall: executed against the active agent's own servers; the
//     result, or the error, is appended to the history and the model is
//     asked again
//  2. Handoff: control moves to a listed target with the history intact
//  3. FinalAnswer: checked against the active agent's output contract
//
// A Runner holds no per-run state and may serve concurrent runs.
type Runner struct {
	decider Decider
	cfg     RunConfig
	events  entity.EventSink
	now     func() time.Time
}

// NewRunner creates a Runner. Non-positive MaxHandoffs and MaxTurns fall
// back to the defaults.
func NewRunner(decider Decider, cfg RunConfig, opts ...RunnerOption) *Runner {
	if cfg.MaxHandoffs <= 0 {
		cfg.MaxHandoffs = DefaultMaxHandoffs
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxOutputRetries < 0 {
		cfg.MaxOutputRetries = 0
	}
	r := &Runner{
		decider: decider,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the effective limits.
func (r *Runner) Config() RunConfig {
	return r.cfg
}

// Run executes input starting at entry. The result is never nil; err is
// the fatal error when the run did not complete. Hand-offs and tool calls
// are recorded on the trace span found in ctx, if any.
func (r *Runner) Run(ctx context.Context, entry *entity.Agent, input string) (*entity.RunResult, error) {
	run := &entity.Run{
		ID:        uuid.NewString(),
		Status:    entity.RunStatusCreated,
		Input:     input,
		Usage:     &entity.TokenUsage{},
		CreatedAt: time.Now(),
	}
	if entry != nil {
		run.EntryAgent = entry.Name()
		run.ActiveAgent = entry.Name()
	}
	sm := NewRunStateMachine(run)

	ac := NewAbortController(ctx, run.ID, r.cfg.RunTimeout)
	defer ac.CleanUp()

	if err := sm.TransitionToInProgress(); err != nil {
		return r.finish(sm, err)
	}
	if err := entity.ValidateGraph(entry); err != nil {
		return r.finish(sm, err)
	}

	logger.InfoX(pkg.ModuleName, "[Runner] run %s started with agent %s", run.ID, entry.Name())
	r.emit(&entity.RunEvent{Type: entity.EventRunStatus, RunID: run.ID, RunStatus: run.Status})

	run.Append(entity.NewUserMessage(input))
	err := r.loop(ac, sm, entry)
	return r.finish(sm, err)
}

func (r *Runner) loop(ac *AbortController, sm *RunStateMachine, entry *entity.Agent) error {
	ctx := ac.Context()
	run := sm.Run()
	span := trace.SpanFromContext(ctx)

	active := entry
	instructions, err := r.activate(run, active)
	if err != nil {
		return err
	}

	for {
		if err := ac.CheckAborted(); err != nil {
			return err
		}
		if run.Turns >= r.cfg.MaxTurns {
			return fmt.Errorf("%w: %d model turns without a final answer", errno.ErrMaxTurnsExceeded, run.Turns)
		}
		run.Turns++

		req, err := r.buildRequest(active, instructions, sm.History())
		if err != nil {
			return err
		}

		decision, err := r.decide(ac, req)
		if err != nil {
			return err
		}
		run.Usage.Add(decision.Usage)
		span.RecordUsage(decision.Usage)

		switch decision.Kind {
		case DecisionToolCall:
			r.handleToolCall(ctx, run, active, decision.ToolCall)

		case DecisionHandoff:
			target, ok := active.Handoff(decision.HandoffTarget)
			if !ok {
				return fmt.Errorf("%w: agent %q cannot hand off to %q", errno.ErrInvalidHandoff, active.Name(), decision.HandoffTarget)
			}
			if run.HandoffCount >= r.cfg.MaxHandoffs {
				return fmt.Errorf("%w: limit is %d", errno.ErrHandoffLimitExceeded, r.cfg.MaxHandoffs)
			}
			run.HandoffCount++

			rec := &entity.HandoffRecord{From: active.Name(), To: target.Name(), At: time.Now()}
			r.recordHandoff(run, active, decision)
			span.RecordHandoff(rec.From, rec.To)
			r.emit(&entity.RunEvent{Type: entity.EventHandoff, RunID: run.ID, Agent: active.Name(), Handoff: rec})
			logger.InfoX(pkg.ModuleName, "[Runner] run %s: hand-off %s -> %s", run.ID, rec.From, rec.To)

			active = target
			if instructions, err = r.activate(run, active); err != nil {
				return err
			}

		default:
			done, err := r.handleFinalAnswer(run, sm, active, decision.Content)
			if err != nil || done {
				return err
			}
		}
	}
}

func (r *Runner) activate(run *entity.Run, a *entity.Agent) (string, error) {
	run.ActiveAgent = a.Name()
	instructions, err := a.Instructions(r.now())
	if err != nil {
		return "", fmt.Errorf("%w: %w", errno.ErrInvalidAgent, err)
	}
	r.emit(&entity.RunEvent{Type: entity.EventAgentActive, RunID: run.ID, Agent: a.Name()})
	return instructions, nil
}

func (r *Runner) buildRequest(a *entity.Agent, instructions string, history []*entity.Message) (*ModelRequest, error) {
	req := &ModelRequest{
		Agent:        a,
		Instructions: instructions,
		History:      history,
	}

	seen := make(map[string]string)
	for _, s := range a.ToolServers() {
		infos, err := s.Tools()
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			// The first binding of a tool name wins, matching ResolveTool.
			if owner, dup := seen[info.Name]; dup {
				logger.WarnX(pkg.ModuleName, "[Runner] tool %q of server %q is shadowed by server %q", info.Name, s.Name(), owner)
				continue
			}
			seen[info.Name] = s.Name()
			req.Tools = append(req.Tools, info)
		}
	}

	for _, h := range a.Handoffs() {
		req.Handoffs = append(req.Handoffs, HandoffOption{Name: h.Name(), Description: h.HandoffDescription()})
	}
	if c := a.OutputContract(); c != nil {
		req.OutputSchema = c.SchemaString()
	}
	return req, nil
}

// decide runs one model call under the per-call timeout and maps its
// failure modes onto the error taxonomy.
func (r *Runner) decide(ac *AbortController, req *ModelRequest) (*Decision, error) {
	ctx := ac.Context()
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.cfg.ModelTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.ModelTimeout)
	}
	defer cancel()

	decision, err := r.decider.Decide(callCtx, req)
	if err != nil {
		if abortErr := ac.CheckAborted(); abortErr != nil {
			return nil, abortErr
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: agent %q after %s", errno.ErrModelTimeout, req.Agent.Name(), r.cfg.ModelTimeout)
		}
		if errno.KindOf(err) == errno.KindInternal {
			return nil, fmt.Errorf("%w: %w", errno.ErrModelCall, err)
		}
		return nil, err
	}

	switch {
	case decision == nil:
		return nil, fmt.Errorf("%w: empty decision", errno.ErrModelCall)
	case decision.Kind == DecisionToolCall && decision.ToolCall == nil:
		return nil, fmt.Errorf("%w: tool call decision without a call", errno.ErrModelCall)
	case decision.Kind == DecisionToolCall && decision.ToolCall.ID == "":
		decision.ToolCall.ID = "call_" + uuid.NewString()
	}
	return decision, nil
}

// handleToolCall executes call against the active agent's servers only. A
// tool the agent does not have, or a failing tool, becomes an observation
// for the model rather than a run failure.
func (r *Runner) handleToolCall(ctx context.Context, run *entity.Run, active *entity.Agent, call *entity.ToolCall) {
	run.ToolCallCount++
	run.Append(entity.NewToolCallMessage(active.Name(), call))
	r.emit(&entity.RunEvent{Type: entity.EventToolCallStart, RunID: run.ID, Agent: active.Name(), ToolCall: call})

	result := &entity.ToolResult{ToolCallID: call.ID, Name: call.Name}
	var callErr error

	server, ok := active.ResolveTool(call.Name)
	if !ok {
		callErr = fmt.Errorf("%w: %q is not available to agent %q", errno.ErrToolNotAvailable, call.Name, active.Name())
	} else {
		result.Server = server.Name()
		result.Content, callErr = server.Invoke(ctx, call.Name, call.Arguments)
	}
	if callErr != nil {
		result.Error = callErr.Error()
		logger.WarnX(pkg.ModuleName, "[Runner] run %s: tool %s: %v", run.ID, call.Name, callErr)
	}

	trace.SpanFromContext(ctx).RecordToolCall(active.Name(), result.Server, call.Name, callErr)
	run.Append(entity.NewToolMessage(active.Name(), call.ID, call.Name, result.Observation()))
	r.emit(&entity.RunEvent{Type: entity.EventToolCallEnd, RunID: run.ID, Agent: active.Name(), ToolCall: call, ToolResult: result})
}

// recordHandoff appends the transfer as a tool call plus its result, so the
// conversation stays well-formed for the next agent.
func (r *Runner) recordHandoff(run *entity.Run, from *entity.Agent, d *Decision) {
	callID := d.HandoffCallID
	if callID == "" {
		callID = "call_" + uuid.NewString()
	}
	run.Append(entity.NewHandoffMessages(from.Name(), d.HandoffTarget, callID, HandoffToolName(d.HandoffTarget))...)
}

// handleFinalAnswer reports done when the run completed. A contract
// violation within the retry budget appends the violation and continues.
func (r *Runner) handleFinalAnswer(run *entity.Run, sm *RunStateMachine, active *entity.Agent, content string) (bool, error) {
	run.Append(entity.NewAssistantMessage(active.Name(), content))
	run.RawOutput = content

	c := active.OutputContract()
	if c == nil {
		sm.TransitionToCompleted(nil)
		r.emit(&entity.RunEvent{Type: entity.EventFinalAnswer, RunID: run.ID, Agent: active.Name(), Content: content})
		return true, nil
	}

	value, err := c.Validate(content)
	if err == nil {
		sm.TransitionToCompleted(value)
		r.emit(&entity.RunEvent{Type: entity.EventFinalAnswer, RunID: run.ID, Agent: active.Name(), Content: content})
		return true, nil
	}

	if run.OutputRetries >= r.cfg.MaxOutputRetries {
		return false, fmt.Errorf("%w: agent %q, contract %q: %w", errno.ErrOutputValidation, active.Name(), c.Name(), err)
	}
	run.OutputRetries++
	logger.WarnX(pkg.ModuleName, "[Runner] run %s: answer rejected (%d/%d): %v", run.ID, run.OutputRetries, r.cfg.MaxOutputRetries, err)
	r.emit(&entity.RunEvent{Type: entity.EventOutputRejected, RunID: run.ID, Agent: active.Name(), Content: content, Error: err.Error()})
	run.Append(entity.NewUserMessage(fmt.Sprintf(
		"Your previous answer does not match the required %s format: %v. Reply again with only the corrected JSON object.", c.Name(), err)))
	return false, nil
}

func (r *Runner) finish(sm *RunStateMachine, err error) (*entity.RunResult, error) {
	run := sm.Run()
	switch {
	case err == nil:
	case errors.Is(err, errno.ErrAborted) || errors.Is(err, context.Canceled):
		sm.TransitionToCancelled(err)
	default:
		sm.TransitionToFailed(err)
	}

	ev := &entity.RunEvent{Type: entity.EventRunStatus, RunID: run.ID, Agent: run.ActiveAgent, RunStatus: run.Status}
	if err != nil {
		ev.Error = err.Error()
		r.emit(&entity.RunEvent{Type: entity.EventError, RunID: run.ID, Agent: run.ActiveAgent, Error: err.Error()})
	}
	r.emit(ev)

	logger.InfoX(pkg.ModuleName, "[Runner] run %s finished: status=%s turns=%d handoffs=%d tool_calls=%d",
		run.ID, run.Status, run.Turns, run.HandoffCount, run.ToolCallCount)
	return sm.Result(), err
}

func (r *Runner) emit(ev *entity.RunEvent) {
	if r.events != nil {
		r.events(ev)
	}
}
