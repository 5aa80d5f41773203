package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 5, cfg.Engine.ReviewInterval)
	assert.Equal(t, 3, cfg.Engine.MaxAttempts)
	assert.Equal(t, 30000, cfg.Engine.SummarizeAt)
	assert.Equal(t, DefaultRoleTokenBudgets(), cfg.Engine.TokenBudgets)
	assert.Equal(t, "chromem", cfg.Retrieval.Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("ENGINE_REVIEW_INTERVAL", "7")
	os.Setenv("ENGINE_MAX_ATTEMPTS", "5")
	defer os.Unsetenv("ENGINE_REVIEW_INTERVAL")
	defer os.Unsetenv("ENGINE_MAX_ATTEMPTS")

	cfg := Load()
	assert.Equal(t, 7, cfg.Engine.ReviewInterval)
	assert.Equal(t, 5, cfg.Engine.MaxAttempts)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Load()
	cfg.Models.Primary = ModelEndpoint{Provider: "openai", Model: "gpt-4"}
	require.NoError(t, cfg.Validate())

	cfg.Engine.MaxAttempts = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestConfig_Validate_RequiresPrimaryModel(t *testing.T) {
	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models.primary")
}

func TestModelRegistry_ResolveFallsBackToPrimary(t *testing.T) {
	registry := ModelRegistry{
		Primary: ModelEndpoint{Provider: "openai", Model: "gpt-4"},
	}

	assert.Equal(t, registry.Primary, registry.Resolve("summarizer"))
	assert.Equal(t, registry.Primary, registry.Resolve("research"))
	assert.Equal(t, registry.Primary, registry.Resolve("supervisor"))
	assert.Equal(t, registry.Primary, registry.Resolve("primary"))
}

func TestModelRegistry_ResolveUsesConfiguredRole(t *testing.T) {
	registry := ModelRegistry{
		Primary:  ModelEndpoint{Provider: "openai", Model: "gpt-4"},
		Research: ModelEndpoint{Provider: "anthropic", Model: "claude-haiku"},
	}

	assert.Equal(t, registry.Research, registry.Resolve("research"))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-super-secret", s.Value())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(data))
}
