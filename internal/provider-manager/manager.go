package manager

import (
	"context"
	"fmt"

	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/internal/providers/gemini"
	"github.com/biodoia/multiorch/internal/providers/openai"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/rs/zerolog/log"
)

// ProviderManager costruisce router e credenziali a partire dalla configurazione
type ProviderManager struct {
	cfg         config.ProvidersConfig
	router      *providers.Router
	credentials providers.StaticCredentials
}

// New registra i tre provider dell'insieme chiuso con i client reali
func New(cfg config.ProvidersConfig) (*ProviderManager, error) {
	pm := &ProviderManager{
		cfg:    cfg,
		router: providers.NewRouter(),
		credentials: providers.StaticCredentials{
			providers.ChatGPT:    cfg.ChatGPT.APIKey,
			providers.Gemini:     cfg.Gemini.APIKey,
			providers.Perplexity: cfg.Perplexity.APIKey,
		},
	}

	entries := []struct {
		name   providers.Name
		client providers.Client
		models []string
	}{
		{providers.ChatGPT, openai.NewClient(openai.ChatGPTConfig(cfg.ChatGPT.BaseURL, cfg.Timeout)), cfg.ChatGPT.Models},
		{providers.Gemini, gemini.NewClient(cfg.Gemini.BaseURL, cfg.Timeout), cfg.Gemini.Models},
		{providers.Perplexity, openai.NewClient(openai.PerplexityConfig(cfg.Perplexity.BaseURL, cfg.Timeout)), cfg.Perplexity.Models},
	}

	for _, e := range entries {
		if err := pm.router.Register(e.name, e.client, e.models); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", e.name, err)
		}
	}

	log.Info().
		Int("providers", len(entries)).
		Msg("Upstream providers initialized")

	return pm, nil
}

// Router restituisce il router dei provider
func (pm *ProviderManager) Router() *providers.Router {
	return pm.router
}

// Credentials restituisce la sorgente di credenziali configurata
func (pm *ProviderManager) Credentials() providers.StaticCredentials {
	return pm.credentials
}

// ProviderInfo contiene informazioni su un provider
type ProviderInfo struct {
	Name          providers.Name `json:"name"`
	Candidates    []string       `json:"candidates"`
	HasCredential bool           `json:"has_credential"`
}

// ListProviders restituisce i provider registrati con i rispettivi candidati
func (pm *ProviderManager) ListProviders() []ProviderInfo {
	names := pm.router.List()
	infos := make([]ProviderInfo, 0, len(names))

	for _, name := range names {
		b, err := pm.router.Resolve(string(name))
		if err != nil {
			continue
		}
		_, credErr := pm.credentials.Credential(context.Background(), name)
		infos = append(infos, ProviderInfo{
			Name:          name,
			Candidates:    b.Candidates,
			HasCredential: credErr == nil,
		})
	}

	return infos
}
