package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/internal/pkg/envref"
	"github.com/kiosk404/conductor/pkg/logger"
)

// Manager is the run-scoped set of connected tool servers.
type Manager interface {
	// ConnectAll connects the given servers in order. It is all or nothing.
	ConnectAll(ctx context.Context, specs []*ServerConfig) error

	// HandlesFor returns the handles for names, in the requested order.
	HandlesFor(names []string) ([]entity.ToolServer, error)

	// ServerNames returns connected server names in connect order.
	ServerNames() []string

	// Close closes every handle in reverse connect order.
	Close() error
}

var _ Manager = (*Registry)(nil)

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClientFactory swaps the transport, mainly for tests.
func WithClientFactory(f ClientFactory) RegistryOption {
	return func(r *Registry) { r.factory = f }
}

// WithHandshakeTimeout bounds launch plus initialize plus tool discovery.
func WithHandshakeTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.handshakeTimeout = d }
}

// WithEnvLookup changes where "${VAR}" references are resolved from.
func WithEnvLookup(lookup envref.LookupFunc) RegistryOption {
	return func(r *Registry) { r.lookup = lookup }
}

// Registry owns the tool server handles of one run.
type Registry struct {
	factory          ClientFactory
	handshakeTimeout time.Duration
	lookup           envref.LookupFunc

	mu      sync.Mutex
	servers map[string]*ToolServer
	order   []*ToolServer // connect order
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:          DefaultClientFactory,
		handshakeTimeout: DefaultHandshakeTimeout,
		servers:          make(map[string]*ToolServer),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ConnectAll validates every spec and resolves every credential before
// launching anything, then connects the servers one by one. If any server
// fails, the servers connected by this call are closed in reverse order and
// the first error is returned.
func (r *Registry) ConnectAll(ctx context.Context, specs []*ServerConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: registry is closed", errno.ErrConnection)
	}

	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if spec == nil {
			return fmt.Errorf("%w: nil server spec", errno.ErrConnection)
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errno.ErrConnection, err)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("%w: duplicate server name %q", errno.ErrConnection, spec.Name)
		}
		if _, dup := r.servers[spec.Name]; dup {
			return fmt.Errorf("%w: server %q is already connected", errno.ErrConnection, spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}
	if err := PreflightCredentials(specs, r.lookup); err != nil {
		return err
	}

	logger.Info("[MCP] connecting %d servers...", len(specs))

	connected := make([]*ToolServer, 0, len(specs))
	for _, spec := range specs {
		env, err := spec.ResolveEnv(r.lookup)
		if err != nil {
			r.rollback(connected)
			return err
		}
		srv := NewToolServer(spec, env, r.factory, r.handshakeTimeout)
		logger.Info("[MCP] connecting %s", spec)
		if err := srv.Connect(ctx); err != nil {
			logger.Warn("[MCP] server %q failed to connect: %v", spec.Name, err)
			r.rollback(connected)
			return err
		}
		connected = append(connected, srv)
	}

	for _, srv := range connected {
		r.servers[srv.Name()] = srv
		r.order = append(r.order, srv)
	}
	logger.Info("[MCP] %d servers connected", len(connected))
	return nil
}

func (r *Registry) rollback(connected []*ToolServer) {
	for i := len(connected) - 1; i >= 0; i-- {
		if err := connected[i].Close(); err != nil {
			logger.Warn("[MCP] rollback: %v", err)
		}
	}
}

// Get returns a connected handle by name.
func (r *Registry) Get(name string) (*ToolServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, ok := r.servers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errno.ErrUnknownServer, name)
	}
	return srv, nil
}

// HandlesFor resolves names to handles in the requested order.
func (r *Registry) HandlesFor(names []string) ([]entity.ToolServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entity.ToolServer, 0, len(names))
	for _, name := range names {
		srv, ok := r.servers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errno.ErrUnknownServer, name)
		}
		out = append(out, srv)
	}
	return out, nil
}

// ServerNames returns the connected server names in connect order.
func (r *Registry) ServerNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.order))
	for _, srv := range r.order {
		names = append(names, srv.Name())
	}
	return names
}

// Close closes every handle in reverse connect order. Every handle is
// attempted even if an earlier one fails; the failures are joined. Calling
// Close again is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		if err := r.order[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("[MCP] %d servers closed", len(r.order))
	return errors.Join(errs...)
}

// WithRegistry connects specs, runs fn and always closes the registry,
// on every exit path, including a panic in fn or a cancelled ctx.
func WithRegistry(ctx context.Context, specs []*ServerConfig, fn func(ctx context.Context, reg *Registry) error, opts ...RegistryOption) (err error) {
	reg := NewRegistry(opts...)
	defer func() {
		if cerr := reg.Close(); cerr != nil {
			logger.Warn("[MCP] teardown: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	if err := reg.ConnectAll(ctx, specs); err != nil {
		return err
	}
	return fn(ctx, reg)
}
