package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
)

// Registry maps provider IDs to plugin factories. A provider ID is the
// Name of the plugin its factory builds.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]spi.PluginFactory
}

// NewRegistry registers factories in order.
func NewRegistry(factories ...spi.PluginFactory) (*Registry, error) {
	r := &Registry{factories: make(map[string]spi.PluginFactory, len(factories))}
	for _, f := range factories {
		if err := r.Add(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers factory under the name of the plugin it builds.
func (r *Registry) Add(factory spi.PluginFactory) error {
	if factory == nil {
		return fmt.Errorf("nil provider factory")
	}
	id := factory().Name()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(id, factory)
}

func (r *Registry) add(id string, factory spi.PluginFactory) error {
	if id == "" {
		return fmt.Errorf("provider plugin has no name")
	}
	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("provider %s is already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// New builds a fresh plugin for id.
func (r *Registry) New(id string) (spi.ChatModelPlugin, bool) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// IDs returns the registered provider IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Include adds every provider of other. A provider ID present in both is
// an error and leaves r unchanged.
func (r *Registry) Include(other *Registry) error {
	if other == nil || other == r {
		return nil
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range other.factories {
		if _, ok := r.factories[id]; ok {
			return fmt.Errorf("provider %s is already registered", id)
		}
	}
	for id, f := range other.factories {
		r.factories[id] = f
	}
	return nil
}
