package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/pkg/logger"
)

// AbortController owns the context of one run. The run stops when the
// caller's context ends, the run timeout passes or Abort is called; the
// context cause records which.
type AbortController struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   context.CancelFunc
	once   sync.Once
	runID  string
}

// NewAbortController derives the run context from parent. timeout <= 0
// means no run timeout.
func NewAbortController(parent context.Context, runID string, timeout time.Duration) *AbortController {
	ctx, stop := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, stop = context.WithTimeoutCause(parent, timeout,
			fmt.Errorf("run exceeded %s: %w", timeout, context.DeadlineExceeded))
	}
	ctx, cancel := context.WithCancelCause(ctx)
	return &AbortController{ctx: ctx, cancel: cancel, stop: stop, runID: runID}
}

// Context is the context every step of the run uses.
func (ac *AbortController) Context() context.Context {
	return ac.ctx
}

// Abort stops the run. Later calls do nothing.
func (ac *AbortController) Abort() {
	ac.once.Do(func() {
		logger.InfoX(pkg.ModuleName, "[AbortController] abort run %s", ac.runID)
		ac.cancel(context.Canceled)
	})
}

// CheckAborted is nil while the run may go on. Afterwards it matches both
// errno.ErrAborted and the reason the run stopped.
func (ac *AbortController) CheckAborted() error {
	if ac.ctx.Err() == nil {
		return nil
	}
	return &abortError{cause: context.Cause(ac.ctx)}
}

// CleanUp releases the context. Call it once the run has finished.
func (ac *AbortController) CleanUp() {
	ac.cancel(nil)
	ac.stop()
}

type abortError struct {
	cause error
}

func (e *abortError) Error() string {
	return errno.ErrAborted.Error() + ": " + e.cause.Error()
}

func (e *abortError) Unwrap() []error {
	return []error{errno.ErrAborted, e.cause}
}
