package manager

import (
	"testing"

	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvidersConfig() config.ProvidersConfig {
	return config.ProvidersConfig{
		ChatGPT:    config.ProviderConfig{APIKey: "sk-test", Models: []string{"gpt-4o-mini"}},
		Gemini:     config.ProviderConfig{Models: []string{"gemini-2.5-pro", "gemini-2.5-flash"}},
		Perplexity: config.ProviderConfig{APIKey: "pplx", Models: []string{"sonar"}},
	}
}

func TestNew_RegistersClosedSet(t *testing.T) {
	pm, err := New(testProvidersConfig())
	require.NoError(t, err)

	assert.ElementsMatch(t, providers.All(), pm.Router().List())

	b, err := pm.Router().Resolve(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, providers.Gemini, b.Name)
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, b.Candidates)
}

func TestListProviders(t *testing.T) {
	pm, err := New(testProvidersConfig())
	require.NoError(t, err)

	infos := pm.ListProviders()
	require.Len(t, infos, 3)

	byName := make(map[providers.Name]ProviderInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}

	assert.True(t, byName[providers.ChatGPT].HasCredential)
	assert.False(t, byName[providers.Gemini].HasCredential)
	assert.Equal(t, []string{"sonar"}, byName[providers.Perplexity].Candidates)
}
