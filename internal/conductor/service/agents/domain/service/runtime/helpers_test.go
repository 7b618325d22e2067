package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/contract"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	llmEntity "github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
)

// fakeServer is an in-memory tool server.
type fakeServer struct {
	name  string
	tools map[string]func(args string) (string, error)

	mu    sync.Mutex
	calls []string
}

func newFakeServer(name string) *fakeServer {
	return &fakeServer{name: name, tools: map[string]func(string) (string, error){}}
}

func (s *fakeServer) with(tool string, fn func(args string) (string, error)) *fakeServer {
	s.tools[tool] = fn
	return s
}

func (s *fakeServer) Name() string { return s.name }

func (s *fakeServer) Tools() ([]*schema.ToolInfo, error) {
	out := make([]*schema.ToolInfo, 0, len(s.tools))
	for name := range s.tools {
		out = append(out, &schema.ToolInfo{Name: name, Desc: name + " tool"})
	}
	return out, nil
}

func (s *fakeServer) HasTool(name string) bool {
	_, ok := s.tools[name]
	return ok
}

func (s *fakeServer) Invoke(_ context.Context, tool, args string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, tool)
	s.mu.Unlock()
	fn, ok := s.tools[tool]
	if !ok {
		return "", errors.New("unknown tool")
	}
	return fn(args)
}

func (s *fakeServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// scriptedDecider replays a fixed sequence of decisions and records the
// requests it saw.
type scriptedDecider struct {
	mu       sync.Mutex
	steps    []func(ctx context.Context, req *ModelRequest) (*Decision, error)
	requests []*ModelRequest
}

func script(steps ...func(ctx context.Context, req *ModelRequest) (*Decision, error)) *scriptedDecider {
	return &scriptedDecider{steps: steps}
}

func (d *scriptedDecider) Decide(ctx context.Context, req *ModelRequest) (*Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if len(d.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	step := d.steps[0]
	d.steps = d.steps[1:]
	return step(ctx, req)
}

func answer(content string) func(context.Context, *ModelRequest) (*Decision, error) {
	return func(context.Context, *ModelRequest) (*Decision, error) {
		return &Decision{
			Kind:    DecisionFinalAnswer,
			Content: content,
			Usage:   &entity.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	}
}

func callTool(id, name, args string) func(context.Context, *ModelRequest) (*Decision, error) {
	return func(context.Context, *ModelRequest) (*Decision, error) {
		return &Decision{Kind: DecisionToolCall, ToolCall: &entity.ToolCall{ID: id, Name: name, Arguments: args}}, nil
	}
}

func handoffTo(target string) func(context.Context, *ModelRequest) (*Decision, error) {
	return func(context.Context, *ModelRequest) (*Decision, error) {
		return &Decision{Kind: DecisionHandoff, HandoffTarget: target}, nil
	}
}

func holidayContract() *contract.Contract {
	return contract.MustNew("PublicHolidays",
		contract.Field{Name: "monday", Type: contract.Boolean()},
		contract.Field{Name: "tuesday", Type: contract.Boolean()},
		contract.Field{Name: "wednesday", Type: contract.Boolean()},
		contract.Field{Name: "thursday", Type: contract.Boolean()},
		contract.Field{Name: "friday", Type: contract.Boolean()},
	)
}

func ingredientContract() *contract.Contract {
	ingredient := contract.MustNew("Ingredient", contract.Field{Name: "ingredient_name", Type: contract.String()})
	return contract.MustNew("BaseIngredients", contract.Field{Name: "ingredients", Type: contract.ArrayOf(contract.Object(ingredient))})
}

var gpt4oMini = llmEntity.ModelRef{ProviderID: "openai", ModelID: "gpt-4o-mini"}

func mustAgent(t *testing.T, cfg entity.AgentConfig) *entity.Agent {
	t.Helper()
	if cfg.Model.IsZero() {
		cfg.Model = gpt4oMini
	}
	a, err := entity.NewAgent(cfg)
	require.NoError(t, err)
	return a
}

// mealPlanner builds IngredientExtractor -> PublicHolidayAgent.
func mealPlanner(t *testing.T, holidays, todoist *fakeServer) (extractor, holiday *entity.Agent) {
	t.Helper()
	holiday = mustAgent(t, entity.AgentConfig{
		Name:               "PublicHolidayAgent",
		Instructions:       "Today is {{.Now.Format \"Monday 2006-01-02\"}}. Find public holidays in Victoria, AU for next week.",
		ToolServers:        []entity.ToolServer{holidays},
		OutputContract:     holidayContract(),
		HandoffDescription: "Knows Victorian public holidays.",
	})
	extractor = mustAgent(t, entity.AgentConfig{
		Name:           "IngredientExtractor",
		Instructions:   "Extract the base ingredients from the meal request.",
		ToolServers:    []entity.ToolServer{todoist},
		OutputContract: ingredientContract(),
		Handoffs:       []*entity.Agent{holiday},
	})
	return extractor, holiday
}

func holidayServer() *fakeServer {
	return newFakeServer("holidays").with("get_dates", func(string) (string, error) {
		return `[{"date":"2026-11-03","name":"Melbourne Cup"}]`, nil
	})
}

func todoistServer() *fakeServer {
	return newFakeServer("todoist").with("create_task", func(args string) (string, error) {
		return "created", nil
	})
}
