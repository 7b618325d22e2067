package entity

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/contract"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	llmEntity "github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
)

// AgentConfig is the input to NewAgent.
type AgentConfig struct {
	// Name must be unique within a hand-off graph.
	Name string

	// Instructions is a text/template rendered each time the agent becomes
	// active. Available fields: .Now, .AgentName.
	Instructions string

	// Model is the model binding, e.g. openai/gpt-4o-mini.
	Model llmEntity.ModelRef

	// ToolServers are the servers whose tools this agent may call.
	ToolServers []ToolServer

	// OutputContract, when set, is what the final answer must satisfy.
	OutputContract *contract.Contract

	// Handoffs are the agents this one may transfer control to. They must
	// already be built, so the graph cannot contain cycles.
	Handoffs []*Agent

	// HandoffDescription is shown to agents that can hand off to this one.
	HandoffDescription string
}

// Agent is an immutable agent definition.
type Agent struct {
	name               string
	instructions       *template.Template
	model              llmEntity.ModelRef
	toolServers        []ToolServer
	outputContract     *contract.Contract
	handoffs           []*Agent
	handoffDescription string
}

// InstructionData is the template data for agent instructions.
type InstructionData struct {
	Now       time.Time
	AgentName string
}

// NewAgent validates cfg and builds an Agent.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: agent name is required", errno.ErrInvalidAgent)
	}

	tmpl, err := template.New(cfg.Name).Option("missingkey=error").Parse(cfg.Instructions)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %q instructions: %v", errno.ErrInvalidAgent, cfg.Name, err)
	}

	seen := make(map[string]struct{}, len(cfg.Handoffs))
	byTool := make(map[string]string, len(cfg.Handoffs))
	for _, h := range cfg.Handoffs {
		if h == nil {
			return nil, fmt.Errorf("%w: agent %q has a nil hand-off target", errno.ErrInvalidAgent, cfg.Name)
		}
		if _, dup := seen[h.name]; dup {
			return nil, fmt.Errorf("%w: agent %q lists hand-off target %q twice", errno.ErrDuplicateAgentName, cfg.Name, h.name)
		}
		seen[h.name] = struct{}{}

		// Each target needs its own transfer tool.
		tool := HandoffToolName(h.name)
		if other, clash := byTool[tool]; clash {
			return nil, fmt.Errorf("%w: agent %q: hand-off targets %q and %q both map to tool %q",
				errno.ErrInvalidAgent, cfg.Name, other, h.name, tool)
		}
		byTool[tool] = h.name
	}

	servers := make(map[string]struct{}, len(cfg.ToolServers))
	for _, s := range cfg.ToolServers {
		if s == nil {
			return nil, fmt.Errorf("%w: agent %q has a nil tool server", errno.ErrInvalidAgent, cfg.Name)
		}
		if _, dup := servers[s.Name()]; dup {
			return nil, fmt.Errorf("%w: agent %q binds tool server %q twice", errno.ErrInvalidAgent, cfg.Name, s.Name())
		}
		servers[s.Name()] = struct{}{}

		// A server that is not ready yet has no catalog to check.
		tools, err := s.Tools()
		if err != nil {
			continue
		}
		for _, t := range tools {
			if strings.HasPrefix(t.Name, HandoffToolPrefix) {
				return nil, fmt.Errorf("%w: agent %q: tool %q of server %q uses the reserved prefix %q",
					errno.ErrInvalidAgent, cfg.Name, t.Name, s.Name(), HandoffToolPrefix)
			}
		}
	}

	return &Agent{
		name:               cfg.Name,
		instructions:       tmpl,
		model:              cfg.Model,
		toolServers:        append([]ToolServer(nil), cfg.ToolServers...),
		outputContract:     cfg.OutputContract,
		handoffs:           append([]*Agent(nil), cfg.Handoffs...),
		handoffDescription: cfg.HandoffDescription,
	}, nil
}

func (a *Agent) Name() string { return a.name }
func (a *Agent) Model() llmEntity.ModelRef { return a.model }
func (a *Agent) OutputContract() *contract.Contract { return a.outputContract }
func (a *Agent) HandoffDescription() string { return a.handoffDescription }

// ToolServers returns the bound servers in binding order.
func (a *Agent) ToolServers() []ToolServer {
	return append([]ToolServer(nil), a.toolServers...)
}

// Handoffs returns the hand-off targets in declaration order.
func (a *Agent) Handoffs() []*Agent {
	return append([]*Agent(nil), a.handoffs...)
}

// Handoff looks up a hand-off target of this agent by name.
func (a *Agent) Handoff(name string) (*Agent, bool) {
	for _, h := range a.handoffs {
		if h.name == name {
			return h, true
		}
	}
	return nil, false
}

// ResolveTool finds the bound server that offers tool. Servers are searched
// in binding order; servers outside this agent are never consulted.
func (a *Agent) ResolveTool(tool string) (ToolServer, bool) {
	for _, s := range a.toolServers {
		if s.HasTool(tool) {
			return s, true
		}
	}
	return nil, false
}

// Instructions renders the instruction template at now.
func (a *Agent) Instructions(now time.Time) (string, error) {
	var buf bytes.Buffer
	if err := a.instructions.Execute(&buf, InstructionData{Now: now, AgentName: a.name}); err != nil {
		return "", fmt.Errorf("render instructions for %q: %w", a.name, err)
	}
	return buf.String(), nil
}

// ValidateGraph walks every agent reachable from entry and fails when two
// distinct agents share a name.
func ValidateGraph(entry *Agent) error {
	if entry == nil {
		return fmt.Errorf("%w: entry agent is nil", errno.ErrInvalidAgent)
	}
	byName := make(map[string]*Agent)
	stack := []*Agent{entry}
	for len(stack) > 0 {
		a := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if prev, ok := byName[a.name]; ok {
			if prev != a {
				return fmt.Errorf("%w: %q", errno.ErrDuplicateAgentName, a.name)
			}
			continue
		}
		byName[a.name] = a
		stack = append(stack, a.handoffs...)
	}
	return nil
}
