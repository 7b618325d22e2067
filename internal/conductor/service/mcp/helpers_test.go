package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// newHolidayServer is an in-process stand-in for vic-au-dates-mcp-server.
func newHolidayServer(inFlight, maxInFlight *atomic.Int32) *server.MCPServer {
	srv := server.NewMCPServer("holidays", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(mcp.NewTool("get_dates",
		mcp.WithDescription("List Victorian public holidays between two dates"),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("ISO start date")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("ISO end date")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if inFlight != nil {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
		}
		args := req.GetArguments()
		start, _ := args["start_date"].(string)
		end, _ := args["end_date"].(string)
		if start == "" || end == "" {
			return mcp.NewToolResultError("start_date and end_date are required"), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(`[{"date":"%s","name":"Melbourne Cup"}]`, start)), nil
	})

	srv.AddTool(mcp.NewTool("explode",
		mcp.WithDescription("Always fails"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("upstream calendar unavailable"), nil
	})

	return srv
}

func newTodoServer() *server.MCPServer {
	srv := server.NewMCPServer("todoist", "1.0.0", server.WithToolCapabilities(true))
	srv.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task"),
		mcp.WithString("content", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, _ := req.GetArguments()["content"].(string)
		return mcp.NewToolResultText("created: " + content), nil
	})
	return srv
}

// countingClient records Close calls on the wrapped client.
type countingClient struct {
	client.MCPClient
	name      string
	transport *fakeTransport
}

func (c *countingClient) Close() error {
	c.transport.closed.Add(1)
	c.transport.mu.Lock()
	c.transport.closeOrder = append(c.transport.closeOrder, c.name)
	c.transport.mu.Unlock()
	return c.MCPClient.Close()
}

// brokenClient fails the initialize handshake.
type brokenClient struct {
	client.MCPClient
}

func (c *brokenClient) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return nil, errors.New("protocol mismatch")
}

// stallingClient never answers the handshake.
type stallingClient struct {
	client.MCPClient
}

func (c *stallingClient) Initialize(ctx context.Context, _ mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeTransport hands out in-process clients and counts their lifecycle.
type fakeTransport struct {
	servers map[string]*server.MCPServer
	broken  map[string]bool
	envs    map[string][]string

	created atomic.Int32
	closed  atomic.Int32

	mu         sync.Mutex
	order      []string
	closeOrder []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		servers: map[string]*server.MCPServer{
			"holidays": newHolidayServer(nil, nil),
			"todoist":  newTodoServer(),
		},
		broken: map[string]bool{},
		envs:   map[string][]string{},
	}
}

func (f *fakeTransport) factory(ctx context.Context, cfg *ServerConfig, env []string) (client.MCPClient, error) {
	srv, ok := f.servers[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("exec: %q: executable file not found", cfg.Command)
	}
	cli, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, err
	}
	if err := cli.Start(ctx); err != nil {
		return nil, err
	}
	f.created.Add(1)
	f.mu.Lock()
	f.envs[cfg.Name] = env
	f.order = append(f.order, cfg.Name)
	f.mu.Unlock()

	var mc client.MCPClient = cli
	if f.broken[cfg.Name] {
		mc = &brokenClient{MCPClient: cli}
	}
	return &countingClient{MCPClient: mc, name: cfg.Name, transport: f}, nil
}

func stdioSpec(name string) *ServerConfig {
	return &ServerConfig{Name: name, Transport: TransportStdio, Command: name + "-server"}
}
