// Package dependency wires core services using go.uber.org/dig.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"go.uber.org/dig"

	"github.com/coreagent/core/internal/agent"
	"github.com/coreagent/core/internal/browser"
	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/desktop"
	"github.com/coreagent/core/internal/memory"
	"github.com/coreagent/core/internal/providers"
	"github.com/coreagent/core/internal/schema"
	"github.com/coreagent/core/internal/session"
	"github.com/coreagent/core/internal/tools"
)

// ServiceContainer holds the resolved core service singletons and owns the
// process-wide resources (browser, desktop controller, store clients).
// Callers use the typed getters; they never need to import dig.
type ServiceContainer struct {
	provider  schema.LLMProvider
	store     schema.ConversationStore
	registry  AgentRegistry
	agent     *agent.Agent
	resources *resources
}

func (c *ServiceContainer) Provider() schema.LLMProvider    { return c.provider }
func (c *ServiceContainer) Store() schema.ConversationStore { return c.store }
func (c *ServiceContainer) Agent() *agent.Agent             { return c.agent }
func (c *ServiceContainer) Registry() *tools.Registry       { return c.registry.Registry }

// Close releases every resource the container opened. It is safe to call
// once on every exit path.
func (c *ServiceContainer) Close() error { return c.resources.Close() }

// resources collects everything a constructor opened, so the container can
// release it in reverse order even when wiring fails half-way.
type resources struct {
	closers []io.Closer
}

func (r *resources) add(c io.Closer) { r.closers = append(r.closers, c) }

func (r *resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// LLMModel is a named string type so dig can distinguish it from plain
// strings when injecting the effective model name.
type LLMModel string

// AgentRegistry wraps the tool registry used by the agent loop.
type AgentRegistry struct{ *tools.Registry }

// New builds and wires all core services from cfg. On error, anything
// already opened is released.
func New(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	d := dig.New()
	res := &resources{}

	provides := []any{
		func() context.Context { return ctx },
		func() *resources { return res },
		func() *config.Config { return cfg },
		newProvider,
		resolveLLMModel,
		newConversationStore,
		newMemoryStore,
		newBrowser,
		newDesktop,
		newAgentRegistry,
		newTurnLoop,
		newInstructionBuilder,
		agent.NewAgent,
	}
	for _, p := range provides {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *ServiceContainer
	err := d.Invoke(func(
		provider schema.LLMProvider,
		store schema.ConversationStore,
		reg AgentRegistry,
		a *agent.Agent,
	) {
		result = &ServiceContainer{
			provider:  provider,
			store:     store,
			registry:  reg,
			agent:     a,
			resources: res,
		}
	})
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return result, nil
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	model := cfg.Agents.Defaults.Model
	result := cfg.MatchProvider(model)
	if result.Provider == nil {
		return nil, fmt.Errorf("no API key configured for model %q; edit %s", model, config.ConfigPath())
	}

	apiBase := result.Provider.APIBase
	if apiBase == "" {
		apiBase = cfg.GetAPIBase(model)
	}
	return providers.New(providers.Params{
		APIKey:       result.Provider.APIKey,
		APIBase:      apiBase,
		ExtraHeaders: result.Provider.ExtraHeaders,
		DefaultModel: model,
		ProviderName: result.Name,
	}), nil
}

func resolveLLMModel(cfg *config.Config, p schema.LLMProvider) LLMModel {
	m := cfg.Agents.Defaults.Model
	if m == "" {
		m = p.DefaultModel()
	}
	return LLMModel(m)
}

func newConversationStore(ctx context.Context, cfg *config.Config, res *resources) (schema.ConversationStore, error) {
	store, err := session.Open(ctx, cfg.Session, cfg.WorkspacePath())
	if err != nil {
		return nil, err
	}
	res.add(store)
	return store, nil
}

// newMemoryStore returns nil when memory is disabled or cannot be opened;
// the agent then runs without recall.
func newMemoryStore(ctx context.Context, cfg *config.Config, res *resources) *memory.VectorStore {
	if !cfg.Memory.Enabled {
		return nil
	}
	mem, err := memory.Open(ctx, cfg)
	if err != nil {
		slog.Warn("long-term memory unavailable", "err", err)
		return nil
	}
	res.add(mem)
	return mem
}

// newBrowser starts Chrome when enabled. A failed start is logged and the
// browser tools are left out.
func newBrowser(ctx context.Context, cfg *config.Config, res *resources) *browser.Session {
	bc := cfg.Tools.Browser
	if !bc.Enabled {
		return nil
	}
	s, err := browser.Open(ctx, browser.Options{
		Headless: bc.Headless,
		ExecPath: bc.ExecPath,
		Timeout:  time.Duration(bc.Timeout) * time.Second,
	})
	if err != nil {
		slog.Warn("browser unavailable; browser tools disabled", "err", err)
		return nil
	}
	res.add(s)
	return s
}

func newDesktop(cfg *config.Config, res *resources) *desktop.Controller {
	if !cfg.Tools.Desktop.Enabled {
		return nil
	}
	dc := desktop.New()
	res.add(dc)
	return dc
}

func newAgentRegistry(
	cfg *config.Config,
	mem *memory.VectorStore,
	b *browser.Session,
	dc *desktop.Controller,
) AgentRegistry {
	workspace := cfg.WorkspacePath()

	builder := tools.NewRegistryBuilder().
		WithTools(tools.NewFilesystemTools(workspace, cfg.Tools.RestrictToWorkspace)...).
		WithTool(tools.NewShellTool(workspace, cfg.Tools.Exec.Timeout, cfg.Tools.RestrictToWorkspace)).
		WithTool(tools.NewWebSearchTool(cfg.Tools.Web.Search.APIKey, cfg.Tools.Web.Search.MaxResults)).
		WithTool(tools.NewFetchPageTool(0)).
		WithTool(tools.NewSaveFileFromURLTool(workspace))

	if mem != nil {
		builder.WithTool(tools.NewSaveMemoryTool(mem)).
			WithTool(tools.NewRecallMemoryTool(mem))
	}
	if b != nil {
		builder.WithTools(tools.NewBrowserTools(b, workspace)...)
	}
	if dc != nil {
		builder.WithTools(tools.NewDesktopTools(dc, workspace)...)
	}
	return AgentRegistry{builder.Build()}
}

func agentSettings(cfg *config.Config, m LLMModel) schema.AgentSettings {
	d := cfg.Agents.Defaults
	return schema.AgentSettings{
		Model:         string(m),
		MaxIter:       d.MaxToolIter,
		Temperature:   d.Temperature,
		MaxTokens:     d.MaxTokens,
		ModelBackoff:  d.ModelBackoff(),
		ParallelTools: d.Parallel,
		RecallCount:   d.RecallCount,
	}
}

func newTurnLoop(p schema.LLMProvider, cfg *config.Config, m LLMModel, reg AgentRegistry) *agent.TurnLoop {
	return agent.NewTurnLoop(p, reg.AllTools(), agentSettings(cfg, m))
}

func newInstructionBuilder(cfg *config.Config, loop *agent.TurnLoop, mem *memory.VectorStore) *agent.InstructionBuilder {
	var ms schema.MemoryStore
	if mem != nil {
		ms = mem
	}
	return agent.NewInstructionBuilder(
		filepath.Clean(cfg.WorkspacePath()),
		loop.Tools(),
		ms,
		cfg.Agents.Defaults.RecallCount,
		cfg.Agents.Defaults.Instructions,
	)
}
