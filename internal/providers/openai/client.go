package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/biodoia/multiorch/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// OpenAIBaseURL è l'endpoint ufficiale di OpenAI
	OpenAIBaseURL = "https://api.openai.com"
	// PerplexityBaseURL è l'endpoint di Perplexity (compatibile OpenAI)
	PerplexityBaseURL = "https://api.perplexity.ai"
)

// Config configura un client chat completions
type Config struct {
	Name    providers.Name
	BaseURL string
	// Path dell'endpoint, relativo a BaseURL
	Path string
	// Label è il nome leggibile usato nei messaggi di errore ("OpenAI", "Perplexity")
	Label string
	// EmptyText è il testo restituito quando la risposta non contiene testo
	EmptyText string
	Timeout   time.Duration
}

// ChatGPTConfig restituisce la configurazione di default per chatgpt
func ChatGPTConfig(baseURL string, timeout time.Duration) Config {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	return Config{
		Name:      providers.ChatGPT,
		BaseURL:   baseURL,
		Path:      "/v1/chat/completions",
		Label:     "OpenAI",
		EmptyText: "[OpenAI Empty]",
		Timeout:   timeout,
	}
}

// PerplexityConfig restituisce la configurazione di default per perplexity
func PerplexityConfig(baseURL string, timeout time.Duration) Config {
	if baseURL == "" {
		baseURL = PerplexityBaseURL
	}
	return Config{
		Name:      providers.Perplexity,
		BaseURL:   baseURL,
		Path:      "/chat/completions",
		Label:     "Perplexity",
		EmptyText: "[Perplexity Empty]",
		Timeout:   timeout,
	}
}

// Client implementa providers.Client per API in formato chat completions
// con autenticazione bearer.
type Client struct {
	cfg        Config
	httpClient *resty.Client
}

// NewClient crea un nuovo client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Label == "" {
		cfg.Label = string(cfg.Name)
	}
	if cfg.EmptyText == "" {
		cfg.EmptyText = "[Empty Response]"
	}

	client := &Client{
		cfg:        cfg,
		httpClient: resty.New(),
	}

	client.configureHTTPClient()
	return client
}

// configureHTTPClient configura il client HTTP. Nessun retry a questo livello:
// il fallback tra modelli è responsabilità del Resolver.
func (c *Client) configureHTTPClient() {
	c.httpClient.
		SetBaseURL(c.cfg.BaseURL).
		SetTimeout(c.cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.httpClient.OnBeforeRequest(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("provider", string(c.cfg.Name)).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("Chat completions request")
		return nil
	})

	c.httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", string(c.cfg.Name)).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Chat completions response")
		return nil
	})
}

// Name restituisce il nome del provider servito
func (c *Client) Name() providers.Name {
	return c.cfg.Name
}

// Complete invia prompt come unico messaggio user e restituisce il testo della risposta
func (c *Client) Complete(ctx context.Context, model, prompt, credential string) (string, error) {
	req := &ChatCompletionRequest{
		Model:    model,
		Messages: []ChatMessage{{Role: "user", Content: prompt}},
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetBody(req).
		Post(c.cfg.Path)

	if err != nil {
		if ctx.Err() != nil {
			return "", providers.Terminal(c.cfg.Name, model, 0, "", ctx.Err())
		}
		return "", providers.Transient(c.cfg.Name, model, 0, "", fmt.Errorf("request failed: %w", err))
	}

	return c.parseResponse(model, resp.StatusCode(), resp.Body())
}

// parseResponse classifica la risposta grezza
func (c *Client) parseResponse(model string, status int, body []byte) (string, error) {
	if !json.Valid(body) {
		return "", providers.Transient(c.cfg.Name, model, status,
			fmt.Sprintf("Invalid JSON returned from %s", c.cfg.Label), nil)
	}

	var data ChatCompletionResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", providers.Terminal(c.cfg.Name, model, status,
			fmt.Sprintf("unexpected %s response shape", c.cfg.Label), err)
	}

	if status < 200 || status >= 300 || data.Error != nil {
		return "", c.handleErrorResponse(model, status, data.Error)
	}

	text := data.text()
	if text == "" {
		return c.cfg.EmptyText, nil
	}
	return text, nil
}

// handleErrorResponse trasforma un payload di errore in un *providers.Error
func (c *Client) handleErrorResponse(model string, status int, apiErr *APIError) error {
	message := c.cfg.Label + " error"
	if apiErr != nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	if isOverloaded(status, apiErr) {
		return providers.Transient(c.cfg.Name, model, status, message, nil)
	}
	return providers.Terminal(c.cfg.Name, model, status, message, nil)
}

// isOverloaded riconosce i segnali di sovraccarico temporaneo
func isOverloaded(status int, apiErr *APIError) bool {
	if status == http.StatusServiceUnavailable || status == 529 {
		return true
	}
	if apiErr == nil {
		return false
	}

	code := strings.ToLower(fmt.Sprint(apiErr.Code))
	kind := strings.ToLower(apiErr.Type)
	if strings.Contains(code, "overloaded") || strings.Contains(kind, "overloaded") {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "overloaded")
}
