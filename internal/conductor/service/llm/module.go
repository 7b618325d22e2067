package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/domain/entity"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/openai"
	"github.com/kiosk404/conductor/internal/conductor/service/llm/provider/spi"
	"github.com/kiosk404/conductor/internal/pkg/envref"
	"github.com/kiosk404/conductor/internal/pkg/options"
	"github.com/kiosk404/conductor/pkg/logger"
)

// ErrUnknownProvider is returned for model references whose provider is
// not configured.
var ErrUnknownProvider = errors.New("unknown model provider")

// Config holds the configuration for the LLM module.
type Config struct {
	ModelOptions *options.ModelOptions

	// OutOfTreeRegistry allows registering additional provider plugins
	// beyond the built-in ones. If nil, only in-tree providers are available.
	OutOfTreeRegistry *provider.Registry

	// EnvLookup resolves "${VAR}" API keys. Defaults to os.LookupEnv.
	EnvLookup envref.LookupFunc
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete validates and fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.ModelOptions == nil {
		c.ModelOptions = options.NewModelOptions()
	}
	return CompletedConfig{c}
}

type providerEntry struct {
	plugin spi.ChatModelPlugin
	config *options.ProviderConfig
}

// Module builds Eino chat models from provider plugins.
type Module struct {
	Registry *provider.Registry

	lookup    envref.LookupFunc
	providers map[string]*providerEntry

	mu    sync.Mutex
	cache map[cacheKey]model.BaseChatModel
}

type cacheKey struct {
	ref  entity.ModelRef
	opts entity.ChatOptions
}

// New creates the LLM module from a completed config.
//
// Initialization flow:
// 1. Build the in-tree provider Registry
// 2. Merge out-of-tree providers (if any)
// 3. Overlay user provider config on the plugin defaults (or replace them)
func (c CompletedConfig) New(ctx context.Context) (*Module, error) {
	logger.Info("[LLM] creating LLM module...")

	if errs := c.ModelOptions.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	registry := provider.NewInTreeRegistry()
	if err := registry.Include(c.OutOfTreeRegistry); err != nil {
		return nil, fmt.Errorf("failed to merge out-of-tree providers: %w", err)
	}
	logger.Info("[LLM] provider registry initialized with %d plugins", len(registry.IDs()))

	m := &Module{
		Registry:  registry,
		lookup:    c.EnvLookup,
		providers: make(map[string]*providerEntry),
		cache:     make(map[cacheKey]model.BaseChatModel),
	}

	if c.ModelOptions.Mode != "replace" {
		for _, id := range registry.IDs() {
			plugin, _ := registry.New(id)
			m.providers[id] = &providerEntry{plugin: plugin, config: plugin.DefaultConfig()}
		}
	}

	for id, userCfg := range c.ModelOptions.Providers {
		if entry, ok := m.providers[id]; ok {
			entry.config = mergeProviderConfig(entry.config, userCfg)
			continue
		}
		plugin, ok := registry.New(id)
		if !ok {
			// Unknown providers are assumed to speak the OpenAI API.
			logger.Info("[LLM] provider %q has no plugin, using the openai-compatible client", id)
			plugin = openai.NewCompatible(id)
		}
		m.providers[id] = &providerEntry{plugin: plugin, config: mergeProviderConfig(plugin.DefaultConfig(), userCfg)}
	}

	logger.Info("[LLM] %d providers available: %s", len(m.providers), strings.Join(m.ProviderIDs(), ", "))
	return m, nil
}

func mergeProviderConfig(base, user *options.ProviderConfig) *options.ProviderConfig {
	out := *base
	out.Models = append([]options.ModelDefinition(nil), base.Models...)
	if user == nil {
		return &out
	}
	if user.BaseURL != "" {
		out.BaseURL = user.BaseURL
	}
	if user.APIKey != "" {
		out.APIKey = user.APIKey
	}
	if user.ByAzure {
		out.ByAzure = true
	}
	if user.APIVersion != "" {
		out.APIVersion = user.APIVersion
	}
	if user.Project != "" {
		out.Project = user.Project
	}
	if user.Location != "" {
		out.Location = user.Location
	}
	for _, um := range user.Models {
		replaced := false
		for i := range out.Models {
			if out.Models[i].ID == um.ID {
				out.Models[i] = um
				replaced = true
				break
			}
		}
		if !replaced {
			out.Models = append(out.Models, um)
		}
	}
	return &out
}

// ProviderIDs returns the configured provider IDs, sorted.
func (m *Module) ProviderIDs() []string {
	ids := make([]string, 0, len(m.providers))
	for id := range m.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Connection resolves everything needed to build ref. An API key that is
// required but unresolved is ErrMissingCredential; the error names the
// variable, never a value.
func (m *Module) Connection(ref entity.ModelRef) (*entity.Connection, error) {
	entry, ok := m.providers[ref.ProviderID]
	if !ok {
		return nil, fmt.Errorf("%w: %q (model %s)", ErrUnknownProvider, ref.ProviderID, ref)
	}
	cfg := entry.config

	apiKey, missing := envref.Resolve(cfg.APIKey, m.lookup)
	if entry.plugin.RequiresAPIKey() {
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: model %s needs %s", errno.ErrMissingCredential, ref, strings.Join(missing, ", "))
		}
		if strings.TrimSpace(apiKey) == "" {
			return nil, fmt.Errorf("%w: model %s has no api key configured", errno.ErrMissingCredential, ref)
		}
	}

	conn := &entity.Connection{
		ProviderID:     ref.ProviderID,
		BaseURL:        cfg.BaseURL,
		APIKey:         apiKey,
		Model:          ref.ModelID,
		ByAzure:        cfg.ByAzure,
		APIVersion:     cfg.APIVersion,
		GeminiProject:  cfg.Project,
		GeminiLocation: cfg.Location,
	}
	if def, ok := cfg.Model(ref.ModelID); ok {
		conn.MaxTokens = def.MaxTokens
		if def.Reasoning {
			conn.ThinkingType = entity.ThinkingType_Enable
		}
	}
	return conn, nil
}

// RequiredCredentials checks every ref without building anything and
// reports all missing credentials at once.
func (m *Module) RequiredCredentials(refs []entity.ModelRef) error {
	var errs []error
	seen := make(map[entity.ModelRef]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if _, err := m.Connection(ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChatModel returns the chat model for ref and opts, building it on first
// use. Agents sharing a model and option set share one instance.
func (m *Module) ChatModel(ctx context.Context, ref entity.ModelRef, opts entity.ChatOptions) (model.BaseChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cacheKey{ref: ref, opts: opts}
	if cm, ok := m.cache[key]; ok {
		return cm, nil
	}
	cm, err := m.BuildChatModel(ctx, ref, opts)
	if err != nil {
		return nil, err
	}
	m.cache[key] = cm
	return cm, nil
}

// BuildChatModel always builds a new instance.
func (m *Module) BuildChatModel(ctx context.Context, ref entity.ModelRef, opts entity.ChatOptions) (model.BaseChatModel, error) {
	conn, err := m.Connection(ref)
	if err != nil {
		return nil, err
	}
	cm, err := m.providers[ref.ProviderID].plugin.BuildChatModel(ctx, conn, opts)
	if err != nil {
		return nil, fmt.Errorf("build chat model %s: %w", ref, err)
	}
	logger.Debug("[LLM] built chat model %s", ref)
	return cm, nil
}
