package conductor

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/pkg/utils/json"
)

func init() {
	color.NoColor = true
}

func completedResult() *entity.RunResult {
	return &entity.RunResult{
		RunID:       "run-1",
		Status:      entity.RunStatusCompleted,
		LastAgent:   "PublicHolidayAgent",
		FinalOutput: map[string]any{"tuesday": true},
		Usage:       &entity.TokenUsage{PromptTokens: 200, CompletionTokens: 20, TotalTokens: 220},
		Trace: &entity.TraceInfo{
			Name:     "IngredientExtractor",
			Outcome:  "completed",
			Handoffs: []entity.HandoffRecord{{From: "IngredientExtractor", To: "PublicHolidayAgent"}},
			Duration: 1500 * time.Millisecond,
		},
		Turns:        3,
		HandoffCount: 1,
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, completedResult())

	out := buf.String()
	assert.Contains(t, out, "completed by PublicHolidayAgent")
	assert.Contains(t, out, "IngredientExtractor -> PublicHolidayAgent")
	assert.Contains(t, out, "220 (in 200, out 20)")
	assert.Contains(t, out, `"tuesday": true`)
}

func TestPrintFailedResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &entity.RunResult{
		Status: entity.RunStatusFailed,
		Error:  &entity.RunError{Kind: "missing_credential", Message: "missing credential: OPENAI_API_KEY"},
	})
	assert.Contains(t, buf.String(), "[missing_credential] missing credential: OPENAI_API_KEY")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, completedResult()))

	var decoded entity.RunResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, entity.RunStatusCompleted, decoded.Status)
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	sink := progressPrinter(&buf)
	sink(&entity.RunEvent{Type: entity.EventAgentActive, Agent: "PublicHolidayAgent"})
	sink(&entity.RunEvent{
		Type:       entity.EventToolCallEnd,
		ToolCall:   &entity.ToolCall{Name: "get_dates"},
		ToolResult: &entity.ToolResult{Name: "get_dates"},
	})
	sink(&entity.RunEvent{Type: entity.EventRunStatus})

	assert.Contains(t, buf.String(), "PublicHolidayAgent is working")
	assert.Contains(t, buf.String(), "get_dates")
}
