package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/biodoia/multiorch/internal/conversation"
	"github.com/biodoia/multiorch/internal/health"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/pkg/auth"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/biodoia/multiorch/pkg/database"
	"github.com/biodoia/multiorch/pkg/middleware"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/rs/zerolog/log"
)

// Gateway espone l'engine di orchestrazione e le conversazioni via HTTP
type Gateway struct {
	config     *config.Config
	db         *database.DB
	app        *fiber.App
	chats      *conversation.Service
	jwtManager *auth.JWTManager
	metrics    http.Handler
	health     *health.Checker
}

// Options contiene le dipendenze opzionali del gateway
type Options struct {
	// Metrics è l'handler Prometheus; nil disabilita /metrics
	Metrics http.Handler
	// Health sono i controlli di readiness; nil registra solo il database
	Health *health.Checker
}

// New crea una nuova istanza del gateway
func New(cfg *config.Config, db *database.DB, chats *conversation.Service, opts Options) (*Gateway, error) {
	if chats == nil {
		return nil, fmt.Errorf("conversation service is required")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth enabled but jwt secret is empty")
	}

	app := fiber.New(fiber.Config{
		AppName:      "multiorch",
		ErrorHandler: customErrorHandler,
	})

	gw := &Gateway{
		config:  cfg,
		db:      db,
		app:     app,
		chats:   chats,
		metrics: opts.Metrics,
		health:  opts.Health,
	}

	if gw.health == nil {
		gw.health = health.NewChecker(0)
	}
	if db != nil {
		gw.health.Register("database", db.PingContext)
	}

	if cfg.Auth.Enabled {
		gw.jwtManager = auth.NewJWTManager(auth.JWTConfig{
			SecretKey: cfg.Auth.JWTSecret,
			Issuer:    cfg.Auth.Issuer,
		})
	}

	gw.setupMiddlewares()
	gw.setupRoutes()

	return gw, nil
}

// App restituisce l'applicazione fiber
func (g *Gateway) App() *fiber.App {
	return g.app
}

// customErrorHandler gestisce gli errori non tradotti dagli handler
func customErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	})
}

// setupMiddlewares configura i middleware globali
func (g *Gateway) setupMiddlewares() {
	g.app.Use(middleware.Recovery())
	g.app.Use(middleware.RequestID())
	g.app.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	g.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths: []string{"/api/health", "/metrics"},
	}))
	g.app.Use(middleware.RateLimit(g.config.Server.RateLimit))
}

// authMiddleware restituisce il middleware JWT, o un pass-through se disabilitato
func (g *Gateway) authMiddleware() fiber.Handler {
	if g.jwtManager == nil {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	return middleware.Auth(middleware.AuthConfig{JWTManager: g.jwtManager})
}

// setupRoutes configura le route HTTP
func (g *Gateway) setupRoutes() {
	g.app.Get("/", g.handleRoot)
	g.app.Get("/api/health", g.handleHealth)
	g.app.Get("/api/ready", g.handleReady)

	if g.metrics != nil && g.config.Monitoring.Prometheus.Enabled {
		g.app.Get("/metrics", adaptor.HTTPHandler(g.metrics))
	}

	// Conversations
	chats := g.app.Group("/api/chats", g.authMiddleware())
	chats.Post("/", g.handleCreateConversation)
	chats.Get("/", g.handleListConversations)
	chats.Get("/:id", g.handleGetConversation)
	chats.Put("/:id", g.handleRenameConversation)
	chats.Delete("/:id", g.handleDeleteConversation)
	chats.Put("/:id/providers", g.handleUpdateProviders)
	chats.Post("/:id/messages", g.handleSendMessage)

	// Direct single-provider calls
	for _, name := range providers.All() {
		g.app.Post("/api/"+string(name), g.authMiddleware(), g.handleDirect(name))
	}
}

// Start avvia il gateway
func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	log.Info().Str("addr", addr).Msg("HTTP server listening")

	return g.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown esegue lo shutdown graceful del gateway
func (g *Gateway) Shutdown(ctx context.Context) error {
	if err := g.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("Gateway shutdown completed")
	return nil
}

// handleRoot conferma che il servizio è attivo
func (g *Gateway) handleRoot(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Multi-AI Orchestrator backend is running",
	})
}

// handleHealth endpoint di health check
func (g *Gateway) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleReady endpoint di readiness check
func (g *Gateway) handleReady(c fiber.Ctx) error {
	status := g.health.Check(c.Context())
	if !status.Ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}
