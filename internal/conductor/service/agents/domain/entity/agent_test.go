package entity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
)

type stubServer struct {
	name  string
	tools []string
}

func (s *stubServer) Name() string { return s.name }

func (s *stubServer) Tools() ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		infos = append(infos, &schema.ToolInfo{Name: t})
	}
	return infos, nil
}

func (s *stubServer) HasTool(name string) bool {
	for _, t := range s.tools {
		if t == name {
			return true
		}
	}
	return false
}

func (s *stubServer) Invoke(context.Context, string, string) (string, error) {
	return s.name, nil
}

func mustAgent(t *testing.T, cfg AgentConfig) *Agent {
	t.Helper()
	a, err := NewAgent(cfg)
	require.NoError(t, err)
	return a
}

func TestNewAgentValidation(t *testing.T) {
	_, err := NewAgent(AgentConfig{})
	assert.ErrorIs(t, err, errno.ErrInvalidAgent)

	_, err = NewAgent(AgentConfig{Name: "a", Instructions: "{{.Nope"})
	assert.ErrorIs(t, err, errno.ErrInvalidAgent)

	_, err = NewAgent(AgentConfig{Name: "a", Handoffs: []*Agent{nil}})
	assert.ErrorIs(t, err, errno.ErrInvalidAgent)

	b := mustAgent(t, AgentConfig{Name: "b"})
	_, err = NewAgent(AgentConfig{Name: "a", Handoffs: []*Agent{b, b}})
	assert.ErrorIs(t, err, errno.ErrDuplicateAgentName)

	s := &stubServer{name: "holidays"}
	_, err = NewAgent(AgentConfig{Name: "a", ToolServers: []ToolServer{s, s}})
	assert.ErrorIs(t, err, errno.ErrInvalidAgent)
}

func TestNewAgentRejectsAmbiguousTransferTools(t *testing.T) {
	spaced := mustAgent(t, AgentConfig{Name: "Public Holiday"})
	underscored := mustAgent(t, AgentConfig{Name: "Public_Holiday"})
	require.Equal(t, HandoffToolName(spaced.Name()), HandoffToolName(underscored.Name()))

	_, err := NewAgent(AgentConfig{Name: "a", Handoffs: []*Agent{spaced, underscored}})
	require.ErrorIs(t, err, errno.ErrInvalidAgent)
	assert.Contains(t, err.Error(), "transfer_to_Public_Holiday")

	// one of them alone is fine
	mustAgent(t, AgentConfig{Name: "a", Handoffs: []*Agent{spaced}})
}

func TestNewAgentRejectsReservedToolNames(t *testing.T) {
	s := &stubServer{name: "rogue", tools: []string{"get_dates", "transfer_to_PublicHolidayAgent"}}
	_, err := NewAgent(AgentConfig{Name: "a", ToolServers: []ToolServer{s}})
	require.ErrorIs(t, err, errno.ErrInvalidAgent)
	assert.Contains(t, err.Error(), "rogue")

	mustAgent(t, AgentConfig{Name: "a", ToolServers: []ToolServer{&stubServer{name: "holidays", tools: []string{"get_dates"}}}})
}

func TestHandoffToolName(t *testing.T) {
	assert.Equal(t, "transfer_to_PublicHolidayAgent", HandoffToolName("PublicHolidayAgent"))
	assert.Equal(t, "transfer_to_meal_planner-2", HandoffToolName("meal planner-2"))
}

func TestAgentIsImmutable(t *testing.T) {
	b := mustAgent(t, AgentConfig{Name: "b"})
	handoffs := []*Agent{b}
	a := mustAgent(t, AgentConfig{Name: "a", Handoffs: handoffs})

	handoffs[0] = nil
	got := a.Handoffs()
	require.Len(t, got, 1)
	assert.Same(t, b, got[0])

	got[0] = nil
	assert.Same(t, b, a.Handoffs()[0])
}

func TestResolveToolIsScopedToBoundServers(t *testing.T) {
	holidays := &stubServer{name: "holidays", tools: []string{"get_dates"}}
	todoist := &stubServer{name: "todoist", tools: []string{"create_task"}}

	a := mustAgent(t, AgentConfig{Name: "a", ToolServers: []ToolServer{holidays}})
	b := mustAgent(t, AgentConfig{Name: "b", ToolServers: []ToolServer{todoist}, Handoffs: []*Agent{a}})

	srv, ok := a.ResolveTool("get_dates")
	require.True(t, ok)
	assert.Equal(t, "holidays", srv.Name())

	_, ok = a.ResolveTool("create_task")
	assert.False(t, ok, "tools of servers not bound to the agent must be invisible")

	_, ok = b.ResolveTool("get_dates")
	assert.False(t, ok, "hand-off targets do not lend their tools")
}

func TestHandoffLookup(t *testing.T) {
	b := mustAgent(t, AgentConfig{Name: "b"})
	a := mustAgent(t, AgentConfig{Name: "a", Handoffs: []*Agent{b}})

	got, ok := a.Handoff("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = a.Handoff("c")
	assert.False(t, ok)
}

func TestInstructionsTemplate(t *testing.T) {
	a := mustAgent(t, AgentConfig{
		Name:         "PublicHolidayAgent",
		Instructions: "You are {{.AgentName}}. The current date is {{.Now.Format \"2006-01-02\"}}.",
	})
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	got, err := a.Instructions(now)
	require.NoError(t, err)
	assert.Equal(t, "You are PublicHolidayAgent. The current date is 2026-10-16.", got)
}

func TestValidateGraph(t *testing.T) {
	leaf := mustAgent(t, AgentConfig{Name: "leaf"})
	mid1 := mustAgent(t, AgentConfig{Name: "mid1", Handoffs: []*Agent{leaf}})
	mid2 := mustAgent(t, AgentConfig{Name: "mid2", Handoffs: []*Agent{leaf}})
	root := mustAgent(t, AgentConfig{Name: "root", Handoffs: []*Agent{mid1, mid2}})
	assert.NoError(t, ValidateGraph(root), "shared targets are fine")

	impostor := mustAgent(t, AgentConfig{Name: "leaf"})
	mid3 := mustAgent(t, AgentConfig{Name: "mid3", Handoffs: []*Agent{impostor}})
	bad := mustAgent(t, AgentConfig{Name: "root", Handoffs: []*Agent{mid1, mid3}})
	err := ValidateGraph(bad)
	require.ErrorIs(t, err, errno.ErrDuplicateAgentName)
	assert.True(t, strings.Contains(err.Error(), "leaf"))

	assert.ErrorIs(t, ValidateGraph(nil), errno.ErrInvalidAgent)
}

func TestTokenUsageAdd(t *testing.T) {
	u := &TokenUsage{}
	u.Add(&TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
	u.Add(nil)
	u.Add(&TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	assert.Equal(t, TokenUsage{PromptTokens: 4, CompletionTokens: 3, TotalTokens: 7}, *u)
}

func TestNewHandoffMessages(t *testing.T) {
	msgs := NewHandoffMessages("IngredientExtractor", "PublicHolidayAgent", "call_1", "transfer_to_PublicHolidayAgent")
	require.Len(t, msgs, 2)

	call, result := msgs[0], msgs[1]
	assert.Equal(t, RoleAssistant, call.Role)
	assert.Equal(t, "IngredientExtractor", call.Agent)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "call_1", call.ToolCalls[0].ID)

	assert.Equal(t, RoleTool, result.Role)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "transfer_to_PublicHolidayAgent", result.Name)
	assert.JSONEq(t, `{"assistant": "PublicHolidayAgent"}`, result.Content)
}
