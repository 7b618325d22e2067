package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
)

// ClientFactory creates a transport-level MCP client for cfg. env holds the
// already resolved "KEY=VALUE" pairs. The returned client must be ready for
// the initialize handshake.
type ClientFactory func(ctx context.Context, cfg *ServerConfig, env []string) (client.MCPClient, error)

// DefaultClientFactory launches stdio servers as child processes and
// connects to sse servers over HTTP.
func DefaultClientFactory(ctx context.Context, cfg *ServerConfig, env []string) (client.MCPClient, error) {
	switch cfg.transport() {
	case TransportStdio:
		return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case TransportSSE:
		cli, err := client.NewSSEMCPClient(cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := startSSE(ctx, cli); err != nil {
			return nil, err
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
}

// startSSE opens the event stream of cli. The stream lives until the client
// is closed, not until ctx ends; ctx only bounds the wait for the endpoint.
func startSSE(ctx context.Context, cli *client.Client) error {
	stop := context.AfterFunc(ctx, func() { _ = cli.Close() })
	err := cli.Start(context.WithoutCancel(ctx))
	if !stop() {
		if err == nil {
			err = ctx.Err()
		}
		return fmt.Errorf("sse connect: %w", err)
	}
	if err != nil {
		_ = cli.Close()
	}
	return err
}
