package commands

import (
	"testing"

	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAskRequest(t *testing.T) {
	req, err := buildAskRequest("gemini", "", "", "", "hi")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.ModeSingle, req.Mode)
	assert.Equal(t, providers.Name("gemini"), req.Bindings.Provider)

	req, err = buildAskRequest("gemini", "chatgpt", "gemini", "perplexity", "hi")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.ModeMulti, req.Mode)
	assert.Equal(t, providers.Name("perplexity"), req.Bindings.Backend)
	assert.Empty(t, req.Bindings.Provider)

	_, err = buildAskRequest("", "chatgpt", "gemini", "", "hi")
	assert.Error(t, err)

	_, err = buildAskRequest("", "", "", "", "hi")
	assert.Error(t, err)
}

func TestGenerateTemplateConfig(t *testing.T) {
	dev := generateTemplateConfig("development")
	assert.Equal(t, "sqlite", dev.Database.Type)
	assert.False(t, dev.Auth.Enabled)
	assert.NotEmpty(t, dev.Providers.Gemini.Models)

	prod := generateTemplateConfig("production")
	assert.Equal(t, "postgres", prod.Database.Type)
	assert.True(t, prod.Redis.Enabled)
	assert.True(t, prod.Auth.Enabled)

	// The generated lock must outlive the slowest possible run
	assert.GreaterOrEqual(t, dev.Orchestration.LockTTL, dev.Providers.WorstCaseRunTime())
}

func TestMaskSecrets(t *testing.T) {
	cfg := *generateTemplateConfig("production")
	cfg.Auth.JWTSecret = "s3cret"
	cfg.Providers.ChatGPT.APIKey = "sk-123"

	masked := maskSecrets(cfg)
	assert.Equal(t, "********", masked.Auth.JWTSecret)
	assert.Equal(t, "********", masked.Providers.ChatGPT.APIKey)
	assert.Equal(t, "********", masked.Database.Connection)
	assert.Empty(t, masked.Providers.Gemini.APIKey)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret, "original is untouched")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "-", dash(""))
}
