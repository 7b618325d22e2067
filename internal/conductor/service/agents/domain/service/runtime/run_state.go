package runtime

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/pkg/logger"
)

var historyCopyOption = copier.Option{
	DeepCopy: true,
	Converters: []copier.TypeConverter{{
		SrcType: time.Time{},
		DstType: time.Time{},
		Fn:      func(src interface{}) (interface{}, error) { return src, nil },
	}},
}

// RunStateMachine manages the lifecycle state transitions of a run.
// State machine: Created -> InProgress -> Completed | Failed | Cancelled
type RunStateMachine struct {
	run *entity.Run
}

// NewRunStateMachine creates a new RunStateMachine for the given run.
func NewRunStateMachine(run *entity.Run) *RunStateMachine {
	return &RunStateMachine{run: run}
}

// TransitionToInProgress transitions the run to the InProgress state.
func (sm *RunStateMachine) TransitionToInProgress() error {
	if sm.run.Status != entity.RunStatusCreated {
		return fmt.Errorf("run %s cannot start from state %s", sm.run.ID, sm.run.Status)
	}
	sm.run.Status = entity.RunStatusInProgress
	logger.InfoX(pkg.ModuleName, "[RunState] run %s -> in_progress", sm.run.ID)
	return nil
}

// TransitionToCompleted transitions the run to the Completed state.
func (sm *RunStateMachine) TransitionToCompleted(output map[string]any) {
	if sm.run.Status.IsTerminal() {
		return
	}
	now := time.Now()
	sm.run.CompletedAt = &now
	sm.run.Status = entity.RunStatusCompleted
	sm.run.FinalOutput = output
	logger.InfoX(pkg.ModuleName, "[RunState] run %s -> completed", sm.run.ID)
}

// TransitionToFailed transitions the run to the Failed state.
func (sm *RunStateMachine) TransitionToFailed(err error) {
	if sm.run.Status.IsTerminal() {
		return
	}
	now := time.Now()
	sm.run.CompletedAt = &now
	sm.run.Status = entity.RunStatusFailed
	sm.run.Error = &entity.RunError{Kind: string(errno.KindOf(err)), Message: err.Error()}
	logger.ErrorX(pkg.ModuleName, "[RunState] run %s -> failed, err: %v", sm.run.ID, sm.run.Error)
}

// TransitionToCancelled transitions the run to the Cancelled state.
func (sm *RunStateMachine) TransitionToCancelled(err error) {
	if sm.run.Status.IsTerminal() {
		return
	}
	now := time.Now()
	sm.run.CompletedAt = &now
	sm.run.Status = entity.RunStatusCancelled
	sm.run.Error = &entity.RunError{Kind: string(errno.KindAborted), Message: err.Error()}
	logger.InfoX(pkg.ModuleName, "[RunState] run %s -> cancelled", sm.run.ID)
}

// Run returns the current run.
func (sm *RunStateMachine) Run() *entity.Run {
	return sm.run
}

// History returns a deep copy of the run history, safe to hand to callers
// and deciders.
func (sm *RunStateMachine) History() []*entity.Message {
	var out []*entity.Message
	if err := copier.CopyWithOption(&out, &sm.run.History, historyCopyOption); err != nil {
		logger.WarnX(pkg.ModuleName, "[RunState] history snapshot: %v", err)
		return append([]*entity.Message(nil), sm.run.History...)
	}
	return out
}

// Result builds the caller-facing result.
func (sm *RunStateMachine) Result() *entity.RunResult {
	r := sm.run
	usage := *r.Usage
	return &entity.RunResult{
		RunID:         r.ID,
		Status:        r.Status,
		FinalOutput:   r.FinalOutput,
		RawOutput:     r.RawOutput,
		LastAgent:     r.ActiveAgent,
		History:       sm.History(),
		Usage:         &usage,
		Error:         r.Error,
		Turns:         r.Turns,
		HandoffCount:  r.HandoffCount,
		ToolCallCount: r.ToolCallCount,
	}
}
