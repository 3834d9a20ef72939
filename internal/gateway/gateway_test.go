package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biodoia/multiorch/internal/conversation"
	"github.com/biodoia/multiorch/internal/health"
	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/pkg/auth"
	"github.com/biodoia/multiorch/pkg/cache"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/biodoia/multiorch/pkg/database"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	gw    *Gateway
	token string
}

func testConfig(authEnabled bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 5000},
		Auth:   config.AuthConfig{Enabled: authEnabled, JWTSecret: testSecret, Issuer: "test"},
		Monitoring: config.MonitoringConfig{
			Prometheus: config.PrometheusConfig{Enabled: true},
		},
	}
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(&database.Config{Type: "sqlite", Connection: ":memory:", MaxConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func setupGateway(t *testing.T, creds providers.StaticCredentials, reply func(name providers.Name, prompt string) (string, error)) *testEnv {
	t.Helper()

	router := providers.NewRouter()
	for _, name := range providers.All() {
		name := name
		require.NoError(t, router.Register(name, providers.ClientFunc(
			func(ctx context.Context, model, prompt, credential string) (string, error) {
				return reply(name, prompt)
			}), []string{"m1"}))
	}

	db := setupTestDB(t)
	engine := orchestrator.NewEngine(router, creds)
	svc := conversation.NewService(db, engine, cache.NewMemoryLocker(), time.Minute)

	gw, err := New(testConfig(true), db, svc, Options{Metrics: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})})
	require.NoError(t, err)

	token, err := auth.NewJWTManager(auth.JWTConfig{SecretKey: testSecret}).GenerateAccessToken("user-1", "u@example.com")
	require.NoError(t, err)

	return &testEnv{gw: gw, token: token}
}

func allCredentials() providers.StaticCredentials {
	return providers.StaticCredentials{providers.ChatGPT: "k", providers.Gemini: "k", providers.Perplexity: "k"}
}

func echo(name providers.Name, prompt string) (string, error) {
	return string(name) + " reply", nil
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.gw.App().Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestNew_RequiresSecretWhenAuthEnabled(t *testing.T) {
	cfg := testConfig(true)
	cfg.Auth.JWTSecret = ""

	_, err := New(cfg, nil, conversation.NewService(nil, nil, nil, 0), Options{})
	assert.Error(t, err)
}

func TestHealthAndRoot(t *testing.T) {
	env := setupGateway(t, allCredentials(), echo)

	resp, body := env.do(t, fiber.MethodGet, "/api/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["ts"])

	resp, body = env.do(t, fiber.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "running")

	resp, body = env.do(t, fiber.MethodGet, "/api/ready", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])

	resp, _ = env.do(t, fiber.MethodGet, "/metrics", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestChats_RequireAuth(t *testing.T) {
	env := setupGateway(t, allCredentials(), echo)

	resp, err := env.gw.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/chats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestChats_MultiFlow(t *testing.T) {
	env := setupGateway(t, allCredentials(), func(name providers.Name, prompt string) (string, error) {
		if name == providers.ChatGPT && !strings.Contains(prompt, "Instruction to Manager") {
			return "combined answer", nil
		}
		return string(name) + " reply", nil
	})

	resp, created := env.do(t, fiber.MethodPost, "/api/chats", map[string]string{
		"managerProvider":  "chatgpt",
		"frontendProvider": "gemini",
		"backendProvider":  "perplexity",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "multi", created["mode"])
	assert.Equal(t, "New orchestrated chat", created["title"])
	assert.Empty(t, created["messages"])

	id := created["id"].(string)

	resp, sent := env.do(t, fiber.MethodPost, "/api/chats/"+id+"/messages", map[string]string{
		"message": "Build a login form with email and password.",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, id, sent["conversationId"])
	assert.Equal(t, "combined answer", sent["reply"])
	assert.Len(t, sent["messages"], 2)

	resp, got := env.do(t, fiber.MethodGet, "/api/chats/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, got["messages"], 2)

	resp, renamed := env.do(t, fiber.MethodPut, "/api/chats/"+id, map[string]string{"title": "Login"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Login", renamed["title"])

	resp, updated := env.do(t, fiber.MethodPut, "/api/chats/"+id+"/providers", map[string]string{
		"managerProvider":  "gemini",
		"frontendProvider": "gemini",
		"backendProvider":  "gemini",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Providers updated successfully", updated["message"])

	resp, deleted := env.do(t, fiber.MethodDelete, "/api/chats/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, deleted["success"])

	resp, _ = env.do(t, fiber.MethodGet, "/api/chats/"+id, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestChats_TerminalErrorSurfacedVerbatim(t *testing.T) {
	env := setupGateway(t, allCredentials(), func(name providers.Name, prompt string) (string, error) {
		return "", providers.Terminal(name, "m1", 401, "invalid key", nil)
	})

	_, created := env.do(t, fiber.MethodPost, "/api/chats", map[string]string{"provider": "perplexity"})
	id := created["id"].(string)

	resp, body := env.do(t, fiber.MethodPost, "/api/chats/"+id+"/messages", map[string]string{"message": "hi"})
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "invalid key", body["error"])
	assert.Equal(t, "terminal_upstream", body["kind"])

	_, got := env.do(t, fiber.MethodGet, "/api/chats/"+id, nil)
	assert.Empty(t, got["messages"], "no message is appended on failure")
}

func TestChats_StatusMapping(t *testing.T) {
	env := setupGateway(t, providers.StaticCredentials{providers.ChatGPT: "k"}, func(name providers.Name, prompt string) (string, error) {
		return "", providers.Transient(name, "m1", 503, "overloaded", nil)
	})

	resp, body := env.do(t, fiber.MethodPost, "/api/chats", map[string]string{"provider": "claude"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid provider. Must be chatgpt | gemini | perplexity", body["error"])

	_, created := env.do(t, fiber.MethodPost, "/api/chats", map[string]string{"provider": "chatgpt"})
	id := created["id"].(string)

	resp, body = env.do(t, fiber.MethodPost, "/api/chats/"+id+"/messages", map[string]string{"message": "hi"})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "All OpenAI models failed", body["error"])

	resp, body = env.do(t, fiber.MethodPost, "/api/chats/"+id+"/messages", map[string]string{"message": "  "})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Message is required", body["error"])

	_, created = env.do(t, fiber.MethodPost, "/api/chats", map[string]string{"provider": "gemini"})
	resp, body = env.do(t, fiber.MethodPost, "/api/chats/"+created["id"].(string)+"/messages", map[string]string{"message": "hi"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Gemini token missing", body["error"])

	resp, _ = env.do(t, fiber.MethodGet, "/api/chats/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestChats_ListOnlyOwn(t *testing.T) {
	env := setupGateway(t, allCredentials(), echo)

	env.do(t, fiber.MethodPost, "/api/chats", map[string]string{"provider": "gemini"})

	req := httptest.NewRequest(fiber.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err := env.gw.App().Test(req)
	require.NoError(t, err)

	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "messages")

	other, err := auth.NewJWTManager(auth.JWTConfig{SecretKey: testSecret}).GenerateAccessToken("user-2", "")
	require.NoError(t, err)
	req = httptest.NewRequest(fiber.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, err = env.gw.App().Test(req)
	require.NoError(t, err)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestDirectRoute(t *testing.T) {
	env := setupGateway(t, allCredentials(), echo)

	resp, body := env.do(t, fiber.MethodPost, "/api/gemini", map[string]string{"prompt": "hello"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "gemini reply", body["text"])

	resp, body = env.do(t, fiber.MethodPost, "/api/gemini", map[string]string{"prompt": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Prompt is required", body["error"])
}

func TestReady_HungDependencyReportsUnavailable(t *testing.T) {
	db := setupTestDB(t)

	checker := health.NewChecker(100 * time.Millisecond)
	checker.Register("redis", func(ctx context.Context) error {
		time.Sleep(2 * time.Second)
		return nil
	})

	gw, err := New(testConfig(false), db, conversation.NewService(db, nil, nil, 0), Options{Health: checker})
	require.NoError(t, err)

	start := time.Now()
	resp, err := gw.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/ready", nil))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Ready)
	assert.Equal(t, "ok", status.Checks["database"])
	assert.Equal(t, "check timed out", status.Checks["redis"])
}
