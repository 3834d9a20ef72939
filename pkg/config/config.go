package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/biodoia/multiorch/pkg/database"
	"github.com/spf13/viper"
)

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Database      database.Config     `mapstructure:"database" yaml:"database"`
	Redis         RedisConfig         `mapstructure:"redis" yaml:"redis"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
	Providers     ProvidersConfig     `mapstructure:"providers" yaml:"providers"`
	Orchestration OrchestrationConfig `mapstructure:"orchestration" yaml:"orchestration"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring" yaml:"monitoring"`
}

// ServerConfig configurazione del server
type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
	// RateLimit richieste al minuto per client, 0 = disabilitato
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RedisConfig configurazione Redis (lock per conversazione)
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// AuthConfig configurazione della validazione JWT
type AuthConfig struct {
	// Enabled richiede un bearer token valido sulle route /api/chats
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// ProviderConfig configurazione di un singolo provider upstream
type ProviderConfig struct {
	BaseURL string   `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string   `mapstructure:"api_key" yaml:"api_key"`
	Models  []string `mapstructure:"models" yaml:"models"`
}

// ProvidersConfig configurazione providers
type ProvidersConfig struct {
	Timeout    time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	ChatGPT    ProviderConfig `mapstructure:"chatgpt" yaml:"chatgpt"`
	Gemini     ProviderConfig `mapstructure:"gemini" yaml:"gemini"`
	Perplexity ProviderConfig `mapstructure:"perplexity" yaml:"perplexity"`
}

// OrchestrationConfig configurazione dell'engine
type OrchestrationConfig struct {
	// PromptsFile file YAML con i system prompt di manager/frontend/backend
	PromptsFile string `mapstructure:"prompts_file" yaml:"prompts_file"`
	// LockTTL durata massima del lock di invio per conversazione.
	// Zero la deriva da WorstCaseRunTime.
	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// orchestrationStages sono le chiamate sequenziali di una run multi:
// decomposizione, dispatch (frontend e backend in parallelo), sintesi
const orchestrationStages = 3

// WorstCaseRunTime è la durata massima di una orchestrazione: ogni stadio
// può provare tutti i candidati del provider più lungo, ciascuno fino al timeout.
func (p ProvidersConfig) WorstCaseRunTime() time.Duration {
	candidates := 0
	for _, pc := range []ProviderConfig{p.ChatGPT, p.Gemini, p.Perplexity} {
		if len(pc.Models) > candidates {
			candidates = len(pc.Models)
		}
	}
	return p.Timeout * time.Duration(candidates*orchestrationStages)
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus" yaml:"prometheus"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// PrometheusConfig configurazione Prometheus
type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LoggingConfig configurazione dei log
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" o "console"
}

// Load carica la configurazione da file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables (MULTIORCH_SERVER_PORT, ...)
	v.SetEnvPrefix("multiorch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Orchestration.LockTTL <= 0 {
		cfg.Orchestration.LockTTL = cfg.Providers.WorstCaseRunTime()
	}

	return &cfg, nil
}

// bindProviderEnv collega le variabili d'ambiente convenzionali dei provider
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("providers.chatgpt.api_key", "MULTIORCH_PROVIDERS_CHATGPT_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.gemini.api_key", "MULTIORCH_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("providers.perplexity.api_key", "MULTIORCH_PROVIDERS_PERPLEXITY_API_KEY", "PERPLEXITY_API_KEY")
	_ = v.BindEnv("auth.jwt_secret", "MULTIORCH_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("database.connection", "MULTIORCH_DATABASE_CONNECTION", "DATABASE_URL")
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.rate_limit", 100)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "./data/multiorch.db")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.log_level", "warn")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.issuer", "multiorch")

	// Providers defaults
	v.SetDefault("providers.timeout", "60s")
	v.SetDefault("providers.chatgpt.base_url", "https://api.openai.com")
	v.SetDefault("providers.chatgpt.models", []string{"gpt-4o-mini"})
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("providers.gemini.models", []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
		"gemini-2.0-flash",
		"gemini-pro-latest",
	})
	v.SetDefault("providers.perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("providers.perplexity.models", []string{"sonar"})

	// Orchestration defaults
	v.SetDefault("orchestration.prompts_file", "")
	v.SetDefault("orchestration.lock_ttl", "0s")

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis enabled but redis.host is empty")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled but auth.jwt_secret is empty")
	}

	for name, p := range map[string]ProviderConfig{
		"chatgpt":    c.Providers.ChatGPT,
		"gemini":     c.Providers.Gemini,
		"perplexity": c.Providers.Perplexity,
	} {
		if len(p.Models) == 0 {
			return fmt.Errorf("providers.%s.models must list at least one model", name)
		}
	}

	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}

	// A lock that expires mid-run lets a second send append at the same position
	if worst := c.Providers.WorstCaseRunTime(); c.Orchestration.LockTTL < worst {
		return fmt.Errorf("orchestration.lock_ttl %s is shorter than the worst-case run time %s (providers.timeout x candidates x %d stages)",
			c.Orchestration.LockTTL, worst, orchestrationStages)
	}

	if c.Orchestration.PromptsFile != "" {
		if _, err := os.Stat(c.Orchestration.PromptsFile); os.IsNotExist(err) {
			return fmt.Errorf("prompts file not found: %s", c.Orchestration.PromptsFile)
		}
	}

	return nil
}
