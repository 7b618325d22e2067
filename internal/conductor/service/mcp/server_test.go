package mcp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
)

func connectedHolidays(t *testing.T, ft *fakeTransport) *ToolServer {
	t.Helper()
	srv := NewToolServer(stdioSpec("holidays"), nil, ft.factory, time.Second)
	require.NoError(t, srv.Connect(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestToolServerConnectDiscoversTools(t *testing.T) {
	ft := newFakeTransport()
	srv := connectedHolidays(t, ft)

	assert.Equal(t, ServerStatusReady, srv.Status())
	tools, err := srv.Tools()
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, ti := range tools {
		names = append(names, ti.Name)
	}
	assert.ElementsMatch(t, []string{"get_dates", "explode"}, names)
	assert.True(t, srv.HasTool("get_dates"))
	assert.False(t, srv.HasTool("create_task"))
}

func TestToolServerToolFilter(t *testing.T) {
	ft := newFakeTransport()
	spec := stdioSpec("holidays")
	spec.ToolFilter = []string{"get_dates"}

	srv := NewToolServer(spec, nil, ft.factory, time.Second)
	require.NoError(t, srv.Connect(context.Background()))
	defer srv.Close()

	assert.True(t, srv.HasTool("get_dates"))
	assert.False(t, srv.HasTool("explode"))
}

func TestToolServerInvoke(t *testing.T) {
	srv := connectedHolidays(t, newFakeTransport())

	out, err := srv.Invoke(context.Background(), "get_dates", `{"start_date":"2026-11-03","end_date":"2026-11-07"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Melbourne Cup")
	assert.Contains(t, out, "2026-11-03")
}

func TestToolServerInvokeErrors(t *testing.T) {
	srv := connectedHolidays(t, newFakeTransport())
	ctx := context.Background()

	_, err := srv.Invoke(ctx, "get_dates", `{not json`)
	assert.ErrorIs(t, err, errno.ErrToolInvocation)

	_, err = srv.Invoke(ctx, "no_such_tool", `{}`)
	assert.ErrorIs(t, err, errno.ErrToolInvocation)

	_, err = srv.Invoke(ctx, "explode", ``)
	require.ErrorIs(t, err, errno.ErrToolInvocation)
	assert.Contains(t, err.Error(), "upstream calendar unavailable")

	_, err = srv.Invoke(ctx, "get_dates", `{"start_date":"2026-11-03"}`)
	assert.ErrorIs(t, err, errno.ErrToolInvocation)
}

func TestToolServerConnectFailureClosesClient(t *testing.T) {
	ft := newFakeTransport()
	ft.broken["holidays"] = true

	srv := NewToolServer(stdioSpec("holidays"), nil, ft.factory, time.Second)
	err := srv.Connect(context.Background())
	require.ErrorIs(t, err, errno.ErrConnection)

	assert.Equal(t, ServerStatusError, srv.Status())
	assert.Error(t, srv.Err())
	assert.Equal(t, int32(1), ft.created.Load())
	assert.Equal(t, int32(1), ft.closed.Load(), "a half-open client must not leak")

	_, err = srv.Tools()
	assert.ErrorIs(t, err, errno.ErrConnection)
}

func TestToolServerSpawnFailure(t *testing.T) {
	ft := newFakeTransport()
	srv := NewToolServer(stdioSpec("playwright"), nil, ft.factory, time.Second)

	err := srv.Connect(context.Background())
	assert.ErrorIs(t, err, errno.ErrConnection)
	assert.Equal(t, int32(0), ft.created.Load())
}

func TestToolServerCloseIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	srv := NewToolServer(stdioSpec("holidays"), nil, ft.factory, time.Second)
	require.NoError(t, srv.Connect(context.Background()))

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
	assert.Equal(t, int32(1), ft.closed.Load())
	assert.Equal(t, ServerStatusClosed, srv.Status())

	_, err := srv.Invoke(context.Background(), "get_dates", `{}`)
	assert.ErrorIs(t, err, errno.ErrToolInvocation)
	assert.ErrorIs(t, srv.Connect(context.Background()), errno.ErrConnection, "a closed handle cannot be reused")
}

func TestToolServerSerializesCalls(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	ft := newFakeTransport()
	ft.servers["holidays"] = newHolidayServer(&inFlight, &maxInFlight)
	srv := connectedHolidays(t, ft)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.Invoke(context.Background(), "get_dates", `{"start_date":"a","end_date":"b"}`)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestToolServerHandshakeTimeout(t *testing.T) {
	slow := func(ctx context.Context, cfg *ServerConfig, env []string) (client.MCPClient, error) {
		cli, err := client.NewInProcessClient(server.NewMCPServer("slow", "1.0.0"))
		if err != nil {
			return nil, err
		}
		if err := cli.Start(ctx); err != nil {
			return nil, err
		}
		return &stallingClient{MCPClient: cli}, nil
	}

	srv := NewToolServer(stdioSpec("slow"), nil, slow, 20*time.Millisecond)
	start := time.Now()
	err := srv.Connect(context.Background())
	require.ErrorIs(t, err, errno.ErrConnection)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestToolServerSSEStaysUsableAfterConnect(t *testing.T) {
	peer := server.NewTestServer(newHolidayServer(nil, nil))
	defer peer.Close()

	spec := &ServerConfig{Name: "holidays", Transport: TransportSSE, URL: peer.URL + "/sse"}
	srv := NewToolServer(spec, nil, DefaultClientFactory, 5*time.Second)
	require.NoError(t, srv.Connect(context.Background()))
	defer srv.Close()

	// the handshake context is gone by now; the event stream must not be
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		out, err := srv.Invoke(context.Background(), "get_dates", `{"start_date":"2026-11-03","end_date":"2026-11-07"}`)
		require.NoError(t, err)
		assert.Contains(t, out, "Melbourne Cup")
	}

	require.NoError(t, srv.Close())
	_, err := srv.Invoke(context.Background(), "get_dates", `{}`)
	assert.ErrorIs(t, err, errno.ErrToolInvocation)
}

func TestToolServerSSEUnreachable(t *testing.T) {
	peer := server.NewTestServer(newHolidayServer(nil, nil))
	url := peer.URL + "/sse"
	peer.Close()

	spec := &ServerConfig{Name: "holidays", Transport: TransportSSE, URL: url}
	srv := NewToolServer(spec, nil, DefaultClientFactory, time.Second)
	assert.ErrorIs(t, srv.Connect(context.Background()), errno.ErrConnection)
	assert.Equal(t, ServerStatusError, srv.Status())
}
