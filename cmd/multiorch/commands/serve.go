package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/biodoia/multiorch/internal/conversation"
	"github.com/biodoia/multiorch/internal/gateway"
	"github.com/biodoia/multiorch/internal/health"
	"github.com/biodoia/multiorch/internal/orchestrator"
	manager "github.com/biodoia/multiorch/internal/provider-manager"
	"github.com/biodoia/multiorch/internal/stats"
	"github.com/biodoia/multiorch/pkg/cache"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/biodoia/multiorch/pkg/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	devMode     bool
	verbose     bool
	autoMigrate bool
)

// ServeCmd rappresenta il comando serve
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestrator HTTP server",
	Long: `Start the HTTP server exposing the direct provider routes,
the conversation API and the Prometheus metrics endpoint.`,
	Example: `  # Start server with default settings
  multiorch serve

  # Start in development mode with verbose logging
  multiorch serve --dev --verbose

  # Start with custom config
  multiorch serve -c /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (pretty logging)")
	ServeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
	ServeCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Auto-run database migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	setupLogger(cfg.Monitoring.Logging, verbose, devMode)

	log.Info().Msg("Starting Multi-AI Orchestrator")

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("auth", cfg.Auth.Enabled).
		Bool("redis", cfg.Redis.Enabled).
		Bool("dev_mode", devMode).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info().
		Str("type", cfg.Database.Type).
		Msg("Database connected")

	if autoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	metrics := stats.NewMetrics(prometheus.DefaultRegisterer, "")

	engine, err := buildEngine(cfg,
		orchestrator.WithAttemptObserver(metrics.ObserveAttempt),
		orchestrator.WithRunObserver(metrics.ObserveRun),
	)
	if err != nil {
		return err
	}

	checker := health.NewChecker(5 * time.Second)

	locker, closeLocker, err := buildLocker(cfg, checker)
	if err != nil {
		return err
	}
	defer closeLocker()

	chats := conversation.NewService(db, engine, locker, cfg.Orchestration.LockTTL)

	gw, err := gateway.New(cfg, db, chats, gateway.Options{
		Metrics: promhttp.Handler(),
		Health:  checker,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	go func() {
		if err := gw.Start(); err != nil {
			log.Fatal().Err(err).Msg("Gateway failed to start")
		}
	}()

	log.Info().Msgf("Gateway running on http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	if cfg.Monitoring.Prometheus.Enabled {
		log.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.Host, cfg.Server.Port)
	}

	return waitForShutdown(gw)
}

// buildEngine costruisce l'engine con i client reali e i system prompt configurati
func buildEngine(cfg *config.Config, opts ...orchestrator.Option) (*orchestrator.Engine, error) {
	pm, err := manager.New(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	prompts, err := orchestrator.LoadSystemPrompts(cfg.Orchestration.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompts: %w", err)
	}

	opts = append([]orchestrator.Option{orchestrator.WithPrompts(prompts)}, opts...)
	return orchestrator.NewEngine(pm.Router(), pm.Credentials(), opts...), nil
}

// buildLocker sceglie il lock di invio: Redis se abilitato, altrimenti in-process.
// Con Redis registra anche il relativo controllo di readiness.
func buildLocker(cfg *config.Config, checker *health.Checker) (cache.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryLocker(), func() {}, nil
	}

	client, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	checker.Register("redis", client.Ping)

	log.Info().Str("host", cfg.Redis.Host).Msg("Redis send lock enabled")

	return cache.NewRedisLocker(client, "multiorch:lock:"), func() { _ = client.Close() }, nil
}

func waitForShutdown(gw *gateway.Gateway) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gw.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Multi-AI Orchestrator stopped cleanly")
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig, verbose, dev bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// Pretty console output in development
	if dev || cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}
}
