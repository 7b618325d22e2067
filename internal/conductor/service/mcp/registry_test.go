package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
)

func newTestRegistry(ft *fakeTransport, env map[string]string) *Registry {
	return NewRegistry(
		WithClientFactory(ft.factory),
		WithHandshakeTimeout(time.Second),
		WithEnvLookup(func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}),
	)
}

func TestRegistryConnectAllAndHandles(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, nil)

	require.NoError(t, reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays"), stdioSpec("todoist")}))
	assert.Equal(t, []string{"holidays", "todoist"}, reg.ServerNames())

	handles, err := reg.HandlesFor([]string{"todoist", "holidays"})
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, "todoist", handles[0].Name())
	assert.Equal(t, "holidays", handles[1].Name())

	_, err = reg.HandlesFor([]string{"holidays", "playwright"})
	assert.ErrorIs(t, err, errno.ErrUnknownServer)

	_, err = reg.Get("playwright")
	assert.ErrorIs(t, err, errno.ErrUnknownServer)

	require.NoError(t, reg.Close())
	assert.Equal(t, []string{"todoist", "holidays"}, ft.closeOrder, "teardown runs in reverse connect order")
	assert.Equal(t, ft.created.Load(), ft.closed.Load())
}

func TestRegistryRollsBackOnFailure(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, nil)

	err := reg.ConnectAll(context.Background(), []*ServerConfig{
		stdioSpec("holidays"),
		stdioSpec("todoist"),
		stdioSpec("playwright"), // not launchable
	})
	require.ErrorIs(t, err, errno.ErrConnection)

	assert.Equal(t, int32(2), ft.created.Load())
	assert.Equal(t, int32(2), ft.closed.Load())
	assert.Equal(t, []string{"todoist", "holidays"}, ft.closeOrder)
	assert.Empty(t, reg.ServerNames())
	assert.NoError(t, reg.Close())
	assert.Equal(t, int32(2), ft.closed.Load(), "rolled back handles are not closed twice")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, nil)

	err := reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays"), stdioSpec("holidays")})
	assert.ErrorIs(t, err, errno.ErrConnection)
	assert.Equal(t, int32(0), ft.created.Load())

	require.NoError(t, reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays")}))
	err = reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays")})
	assert.ErrorIs(t, err, errno.ErrConnection)
	require.NoError(t, reg.Close())
}

func TestRegistryMissingCredentialSpawnsNothing(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, map[string]string{})

	todo := stdioSpec("todoist")
	todo.Env = map[string]string{"TODOIST_API_TOKEN": "${TODOIST_API_KEY}"}

	err := reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays"), todo})
	require.ErrorIs(t, err, errno.ErrMissingCredential)
	assert.Contains(t, err.Error(), "TODOIST_API_KEY")
	assert.Equal(t, int32(0), ft.created.Load())
}

func TestRegistryPassesResolvedEnv(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, map[string]string{"TODOIST_API_KEY": "secret-token"})

	todo := stdioSpec("todoist")
	todo.Env = map[string]string{"TODOIST_API_TOKEN": "${TODOIST_API_KEY}"}

	require.NoError(t, reg.ConnectAll(context.Background(), []*ServerConfig{todo}))
	defer reg.Close()
	assert.Equal(t, []string{"TODOIST_API_TOKEN=secret-token"}, ft.envs["todoist"])
}

func TestRegistryCancelledContext(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reg.ConnectAll(ctx, []*ServerConfig{stdioSpec("holidays"), stdioSpec("todoist")})
	require.Error(t, err)
	assert.Equal(t, ft.created.Load(), ft.closed.Load())
	require.NoError(t, reg.Close())
}

func TestRegistryCloseJoinsErrorsAndIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	reg := newTestRegistry(ft, nil)
	require.NoError(t, reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays"), stdioSpec("todoist")}))

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())
	assert.Equal(t, int32(2), ft.closed.Load())

	err := reg.ConnectAll(context.Background(), []*ServerConfig{stdioSpec("holidays")})
	assert.ErrorIs(t, err, errno.ErrConnection)
}

func TestWithRegistryTearsDownOnEveryPath(t *testing.T) {
	specs := []*ServerConfig{stdioSpec("holidays"), stdioSpec("todoist")}

	t.Run("success", func(t *testing.T) {
		ft := newFakeTransport()
		err := WithRegistry(context.Background(), specs, func(ctx context.Context, reg *Registry) error {
			h, err := reg.HandlesFor([]string{"holidays"})
			require.NoError(t, err)
			_, err = h[0].Invoke(ctx, "get_dates", `{"start_date":"2026-11-03","end_date":"2026-11-07"}`)
			return err
		}, WithClientFactory(ft.factory))
		require.NoError(t, err)
		assert.Equal(t, int32(2), ft.closed.Load())
	})

	t.Run("error", func(t *testing.T) {
		ft := newFakeTransport()
		boom := errors.New("boom")
		err := WithRegistry(context.Background(), specs, func(context.Context, *Registry) error {
			return boom
		}, WithClientFactory(ft.factory))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(2), ft.closed.Load())
	})

	t.Run("panic", func(t *testing.T) {
		ft := newFakeTransport()
		assert.Panics(t, func() {
			_ = WithRegistry(context.Background(), specs, func(context.Context, *Registry) error {
				panic("agent crashed")
			}, WithClientFactory(ft.factory))
		})
		assert.Equal(t, int32(2), ft.closed.Load())
	})

	t.Run("cancel", func(t *testing.T) {
		ft := newFakeTransport()
		ctx, cancel := context.WithCancel(context.Background())
		err := WithRegistry(ctx, specs, func(ctx context.Context, reg *Registry) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}, WithClientFactory(ft.factory))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(2), ft.closed.Load())
	})
}

func TestCloseCountMatchesConnectCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	names := []string{"holidays", "todoist", "playwright"}

	properties.Property("every launched server is closed exactly once", prop.ForAll(
		func(picks []int, brokenHolidays bool, failInRun bool) bool {
			ft := newFakeTransport()
			ft.broken["holidays"] = brokenHolidays

			seen := map[string]bool{}
			var specs []*ServerConfig
			for _, p := range picks {
				name := names[p]
				if seen[name] {
					continue
				}
				seen[name] = true
				specs = append(specs, stdioSpec(name))
			}

			_ = WithRegistry(context.Background(), specs, func(context.Context, *Registry) error {
				if failInRun {
					return errors.New("run failed")
				}
				return nil
			}, WithClientFactory(ft.factory), WithHandshakeTimeout(time.Second))

			return ft.created.Load() == ft.closed.Load()
		},
		gen.SliceOfN(3, gen.IntRange(0, len(names)-1)),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestModuleWithRegistry(t *testing.T) {
	ft := newFakeTransport()
	cfg := NewMCPConfig()
	cfg.MCPServers["holidays"] = &ServerConfig{Command: "uv", Args: []string{"run", "vic-au-dates-mcp-server"}}
	mod, err := (&Config{MCPConfig: cfg, ClientFactory: ft.factory}).Complete().New(context.Background())
	require.NoError(t, err)

	specs, err := mod.Specs([]string{"holidays"})
	require.NoError(t, err)
	err = mod.WithRegistry(context.Background(), specs, func(_ context.Context, reg *Registry) error {
		assert.Equal(t, []string{"holidays"}, reg.ServerNames())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), ft.created.Load())
	assert.Equal(t, int32(1), ft.closed.Load())
}
