package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/agent"
	"github.com/AgentLoom/AgentLoom/internal/collab"
	"github.com/AgentLoom/AgentLoom/internal/config"
	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
	"github.com/AgentLoom/AgentLoom/internal/tools"
)

// runtime bundles the wired components shared by the CLI commands.
type runtime struct {
	cfg         *config.Config
	machine     *agent.StepMachine
	sessions    session.Store
	definitions agent.DefinitionStore
	contexts    *collab.Registry
}

// buildRuntime loads configuration and wires the step machine with
// sqlite-backed stores under the configured data directory.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("no API key configured (set AGENTLOOM_OPENAI_API_KEY or OPENAI_API_KEY)")
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, err
	}

	sessions, err := session.NewSQLiteStore(filepath.Join(cfg.Paths.DataDir, "sessions.db"))
	if err != nil {
		return nil, err
	}
	definitions, err := agent.NewSQLiteDefinitionStore(filepath.Join(cfg.Paths.DataDir, "agents.db"))
	if err != nil {
		return nil, err
	}

	prov := provider.NewOpenAIProvider(
		cfg.Providers.OpenAI.APIKey,
		cfg.Providers.OpenAI.APIBase,
		cfg.Model.Name,
	)

	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool())
	registry.Register(tools.NewWriteFileTool(func() string { return cfg.Paths.Workspace }))
	registry.Register(tools.NewListDirTool())

	contexts := collab.NewRegistry()
	machine := agent.NewStepMachine(agent.Options{
		Provider:    prov,
		Tools:       registry,
		Contexts:    contexts,
		Sessions:    sessions,
		Definitions: definitions,
		Model:       cfg.Model.Name,
		Defaults: agent.Params{
			Temperature: cfg.Model.Temperature,
			TopP:        cfg.Model.TopP,
			MaxTokens:   cfg.Model.MaxTokens,
		},
		MaxIterations:             cfg.Model.MaxToolIterations,
		InteractionTimeout:        time.Duration(cfg.Interactions.TimeoutSeconds) * time.Second,
		MaxInteractionDepth:       cfg.Interactions.MaxDepth,
		MaxConcurrentInteractions: cfg.Interactions.MaxConcurrent,
	})

	return &runtime{
		cfg:         cfg,
		machine:     machine,
		sessions:    sessions,
		definitions: definitions,
		contexts:    contexts,
	}, nil
}
