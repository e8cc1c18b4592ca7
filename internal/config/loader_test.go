package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name string, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENTLOOM_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.MaxToolIterations != 20 {
		t.Fatalf("MaxToolIterations = %d", cfg.Model.MaxToolIterations)
	}
	if cfg.Interactions.TimeoutSeconds != 120 {
		t.Fatalf("TimeoutSeconds = %d", cfg.Interactions.TimeoutSeconds)
	}
	if cfg.Gateway.DefaultAgent != "assistant" {
		t.Fatalf("DefaultAgent = %s", cfg.Gateway.DefaultAgent)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.json", map[string]any{
		"model": map[string]any{"name": "test-model", "temperature": 0.3},
		"interactions": map[string]any{"timeoutSeconds": 30},
	})
	t.Setenv("AGENTLOOM_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "test-model" {
		t.Fatalf("Name = %s", cfg.Model.Name)
	}
	if cfg.Model.Temperature != 0.3 {
		t.Fatalf("Temperature = %v", cfg.Model.Temperature)
	}
	if cfg.Interactions.TimeoutSeconds != 30 {
		t.Fatalf("TimeoutSeconds = %d", cfg.Interactions.TimeoutSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.json", map[string]any{
		"model": map[string]any{"name": "from-file"},
	})
	t.Setenv("AGENTLOOM_CONFIG", path)
	t.Setenv("AGENTLOOM_MODEL_MODEL", "from-env")
	t.Setenv("AGENTLOOM_INTERACTIONS_MAX_DEPTH", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Fatalf("Name = %s", cfg.Model.Name)
	}
	if cfg.Interactions.MaxDepth != 7 {
		t.Fatalf("MaxDepth = %d", cfg.Interactions.MaxDepth)
	}
}

func TestAPIKeyFallback(t *testing.T) {
	t.Setenv("AGENTLOOM_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Fatalf("APIKey = %s", cfg.Providers.OpenAI.APIKey)
	}
}

func TestIncludeAndEnvSubstitution(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.json", map[string]any{
		"model": map[string]any{"name": "base-model", "maxTokens": 2048},
	})
	path := writeConfigFile(t, dir, "config.json", map[string]any{
		"$include": "base.json",
		"model":    map[string]any{"name": "override-model"},
		"providers": map[string]any{
			"openai": map[string]any{"apiKey": "${LOOM_TEST_KEY}"},
		},
	})
	t.Setenv("AGENTLOOM_CONFIG", path)
	t.Setenv("LOOM_TEST_KEY", "resolved-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "override-model" {
		t.Fatalf("Name = %s", cfg.Model.Name)
	}
	if cfg.Model.MaxTokens != 2048 {
		t.Fatalf("MaxTokens = %d (include not merged)", cfg.Model.MaxTokens)
	}
	if cfg.Providers.OpenAI.APIKey != "resolved-key" {
		t.Fatalf("APIKey = %s", cfg.Providers.OpenAI.APIKey)
	}
}

func TestIncludeCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "a.json", map[string]any{"$include": "b.json"})
	path := writeConfigFile(t, dir, "b.json", map[string]any{"$include": "a.json"})
	t.Setenv("AGENTLOOM_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected include cycle error")
	}
}
