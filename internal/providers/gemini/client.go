package gemini

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

// DefaultBaseURL è l'endpoint della Generative Language API
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

const emptyText = "[Gemini Empty Response]"

// DefaultModels sono i candidati di default, dal più capace al più leggero
var DefaultModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
	"gemini-pro-latest",
}

// Client implementa providers.Client per Gemini. La chiave viaggia in query string.
type Client struct {
	httpClient *resty.Client
}

// NewClient crea un nuovo client Gemini
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")

	httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", string(providers.Gemini)).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Gemini API response")
		return nil
	})

	return &Client{httpClient: httpClient}
}

// Complete chiama generateContent su model
func (c *Client) Complete(ctx context.Context, model, prompt, credential string) (string, error) {
	body := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("model", model).
		SetQueryParam("key", credential).
		SetBody(body).
		Post("/v1beta/models/{model}:generateContent")

	if err != nil {
		if ctx.Err() != nil {
			return "", providers.Terminal(providers.Gemini, model, 0, "", ctx.Err())
		}
		return "", providers.Transient(providers.Gemini, model, 0, "", fmt.Errorf("request failed: %w", err))
	}

	return parseResponse(model, resp.StatusCode(), resp.Body())
}

func parseResponse(model string, status int, body []byte) (string, error) {
	if !json.Valid(body) {
		return "", providers.Transient(providers.Gemini, model, status, "Invalid JSON returned from Gemini", nil)
	}

	var data GenerateContentResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", providers.Terminal(providers.Gemini, model, status, "unexpected Gemini response shape", err)
	}

	if data.Error != nil {
		if isOverloaded(status, data.Error) {
			return "", providers.Transient(providers.Gemini, model, status, data.Error.Message, nil)
		}
		return "", providers.Terminal(providers.Gemini, model, status, data.Error.Message, nil)
	}

	if status < 200 || status >= 300 {
		if status == http.StatusServiceUnavailable {
			return "", providers.Transient(providers.Gemini, model, status, "Gemini unavailable", nil)
		}
		return "", providers.Terminal(providers.Gemini, model, status, fmt.Sprintf("Gemini error (status %d)", status), nil)
	}

	text := data.text()
	if text == "" {
		return emptyText, nil
	}
	return text, nil
}

// isOverloaded riconosce i segnali di capacità esaurita del modello
func isOverloaded(status int, e *APIError) bool {
	return e.Code == http.StatusServiceUnavailable ||
		status == http.StatusServiceUnavailable ||
		e.Status == "UNAVAILABLE" ||
		strings.Contains(e.Message, "overloaded")
}
