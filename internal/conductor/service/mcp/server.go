package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpTool "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/pkg/logger"
	"github.com/kiosk404/conductor/pkg/utils/json"
)

// ServerStatus represents the connection state of a tool server.
type ServerStatus int

const (
	ServerStatusDisconnected ServerStatus = iota
	ServerStatusConnecting
	ServerStatusReady
	ServerStatusClosed
	ServerStatusError
)

func (s ServerStatus) String() string {
	switch s {
	case ServerStatusDisconnected:
		return "Disconnected"
	case ServerStatusConnecting:
		return "Connecting"
	case ServerStatusReady:
		return "Ready"
	case ServerStatusClosed:
		return "Closed"
	case ServerStatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

const (
	clientName    = "conductor"
	clientVersion = "0.1.0"

	DefaultHandshakeTimeout = 30 * time.Second
)

var _ entity.ToolServer = (*ToolServer)(nil)

// ToolServer is the live handle of one connected tool server.
//
// A handle connects once and closes once. Calls are serialized because a
// stdio server speaks over a single stream.
type ToolServer struct {
	name             string
	config           *ServerConfig
	env              []string
	factory          ClientFactory
	handshakeTimeout time.Duration

	mu     sync.RWMutex
	callMu sync.Mutex
	client client.MCPClient
	tools  []*schema.ToolInfo
	status ServerStatus
	err    error
}

// NewToolServer creates a disconnected handle. env is the resolved
// environment for the server process.
func NewToolServer(cfg *ServerConfig, env []string, factory ClientFactory, handshakeTimeout time.Duration) *ToolServer {
	if factory == nil {
		factory = DefaultClientFactory
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &ToolServer{
		name:             cfg.Name,
		config:           cfg,
		env:              env,
		factory:          factory,
		handshakeTimeout: handshakeTimeout,
		status:           ServerStatusDisconnected,
	}
}

// Name returns the server name
func (s *ToolServer) Name() string {
	return s.name
}

// Status returns the current connection status.
func (s *ToolServer) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the last connection error, if any.
func (s *ToolServer) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Tools returns the discovered catalog. It fails unless the handle is ready.
func (s *ToolServer) Tools() ([]*schema.ToolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != ServerStatusReady {
		return nil, fmt.Errorf("%w: server %q is %s", errno.ErrConnection, s.name, s.status)
	}
	result := make([]*schema.ToolInfo, len(s.tools))
	copy(result, s.tools)
	return result, nil
}

// HasTool reports whether the ready catalog contains name.
func (s *ToolServer) HasTool(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != ServerStatusReady {
		return false
	}
	for _, t := range s.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Connect launches the server, performs the MCP handshake and discovers
// tools within the handshake timeout. On failure the partially created
// client is closed and the handle is left in the Error state.
func (s *ToolServer) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != ServerStatusDisconnected {
		return fmt.Errorf("%w: server %q: cannot connect from state %s", errno.ErrConnection, s.name, s.status)
	}
	s.status = ServerStatusConnecting
	s.err = nil

	hsCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	cli, tools, err := s.handshake(hsCtx)
	if err != nil {
		s.status = ServerStatusError
		s.err = err
		return fmt.Errorf("%w: server %q: %w", errno.ErrConnection, s.name, err)
	}

	s.client = cli
	s.tools = tools
	s.status = ServerStatusReady
	logger.Info("[MCP] server %q ready with %d tools", s.name, len(tools))
	return nil
}

func (s *ToolServer) handshake(ctx context.Context) (client.MCPClient, []*schema.ToolInfo, error) {
	cli, err := s.factory(ctx, s.config, s.env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	fail := func(stage string, err error) (client.MCPClient, []*schema.ToolInfo, error) {
		if cerr := cli.Close(); cerr != nil {
			logger.Warn("[MCP] server %q: failed to close client after %s failure: %v", s.name, stage, cerr)
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (handshake timeout %s)", err, s.handshakeTimeout)
		}
		return nil, nil, fmt.Errorf("failed to %s: %w", stage, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		return fail("initialize", err)
	}

	baseTools, err := mcpTool.GetTools(ctx, &mcpTool.Config{
		Cli:          cli,
		ToolNameList: s.config.ToolFilter,
	})
	if err != nil {
		return fail("get tools", err)
	}

	infos := make([]*schema.ToolInfo, 0, len(baseTools))
	for _, t := range baseTools {
		info, err := t.Info(ctx)
		if err != nil {
			return fail("describe tools", err)
		}
		infos = append(infos, info)
	}
	return cli, infos, nil
}

// Invoke calls tool with JSON-encoded arguments. Every failure, including a
// provider-reported error result, is ErrToolInvocation.
func (s *ToolServer) Invoke(ctx context.Context, tool, arguments string) (string, error) {
	if !s.HasTool(tool) {
		return "", fmt.Errorf("%w: server %q has no tool %q", errno.ErrToolInvocation, s.name, tool)
	}

	args := map[string]any{}
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("%w: %s.%s: malformed arguments: %v", errno.ErrToolInvocation, s.name, tool, err)
		}
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	s.mu.RLock()
	cli, status := s.client, s.status
	s.mu.RUnlock()
	if status != ServerStatusReady || cli == nil {
		return "", fmt.Errorf("%w: server %q is %s", errno.ErrToolInvocation, s.name, status)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	start := time.Now()
	res, err := cli.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %s.%s: %w", errno.ErrToolInvocation, s.name, tool, err)
	}
	logger.Debug("[MCP] %s.%s returned in %s", s.name, tool, time.Since(start))

	text := renderContent(res.Content)
	if res.IsError {
		return "", fmt.Errorf("%w: %s.%s: %s", errno.ErrToolInvocation, s.name, tool, text)
	}
	return text, nil
}

// Close terminates the session and the server process. Safe to call more
// than once; only the first call has an effect.
func (s *ToolServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == ServerStatusClosed {
		return nil
	}
	var err error
	if s.client != nil {
		if err = s.client.Close(); err != nil {
			logger.Warn("[MCP] server %q: failed to close client: %v", s.name, err)
			err = fmt.Errorf("server %q: close: %w", s.name, err)
		}
		s.client = nil
	}
	s.tools = nil
	s.status = ServerStatusClosed
	return err
}

func renderContent(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, "\n")
}
