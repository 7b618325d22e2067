package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
)

func newRun() *entity.Run {
	return &entity.Run{ID: "run-1", Status: entity.RunStatusCreated, Usage: &entity.TokenUsage{}}
}

func TestRunStateTransitions(t *testing.T) {
	sm := NewRunStateMachine(newRun())
	require.NoError(t, sm.TransitionToInProgress())
	assert.Error(t, sm.TransitionToInProgress(), "a run starts once")

	sm.TransitionToFailed(errors.Join(errno.ErrInvalidHandoff, errors.New("x")))
	assert.Equal(t, entity.RunStatusFailed, sm.Run().Status)
	assert.Equal(t, string(errno.KindInvalidHandoff), sm.Run().Error.Kind)
	require.NotNil(t, sm.Run().CompletedAt)

	// terminal states are final
	sm.TransitionToCompleted(map[string]any{"ok": true})
	sm.TransitionToCancelled(context.Canceled)
	assert.Equal(t, entity.RunStatusFailed, sm.Run().Status)
	assert.Nil(t, sm.Run().FinalOutput)
}

func TestRunStateHistoryIsACopy(t *testing.T) {
	run := newRun()
	run.Append(entity.NewUserMessage("curry"), entity.NewToolCallMessage("A", &entity.ToolCall{ID: "c1", Name: "get_dates"}))
	sm := NewRunStateMachine(run)

	snap := sm.History()
	require.Len(t, snap, 2)
	assert.Equal(t, run.History[0].CreatedAt, snap[0].CreatedAt)

	snap[0].Content = "changed"
	snap[1].ToolCalls[0].Name = "changed"
	assert.Equal(t, "curry", run.History[0].Content)
	assert.Equal(t, "get_dates", run.History[1].ToolCalls[0].Name)
}

func TestAbortController(t *testing.T) {
	ac := NewAbortController(context.Background(), "run-1", 0)
	defer ac.CleanUp()
	assert.NoError(t, ac.CheckAborted())

	ac.Abort()
	ac.Abort()
	err := ac.CheckAborted()
	assert.ErrorIs(t, err, errno.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, errno.KindAborted, errno.KindOf(err))
}

func TestAbortControllerRunTimeout(t *testing.T) {
	ac := NewAbortController(context.Background(), "run-1", time.Millisecond)
	defer ac.CleanUp()

	<-ac.Context().Done()
	err := ac.CheckAborted()
	assert.ErrorIs(t, err, errno.ErrAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "run exceeded 1ms")
}

func TestAbortControllerParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ac := NewAbortController(parent, "run-1", time.Hour)
	defer ac.CleanUp()

	cancel()
	<-ac.Context().Done()
	assert.ErrorIs(t, ac.CheckAborted(), context.Canceled)
}
