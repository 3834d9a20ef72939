package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers/gemini"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/biodoia/multiorch/pkg/database"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd rappresenta il comando config
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate and generate configuration files.`,
	Example: `  # Show current configuration
  multiorch config show

  # Validate configuration file
  multiorch config validate -c config.yaml

  # Generate template configuration
  multiorch config generate -o config.yaml

  # Write the default system prompts to a file
  multiorch config prompts -o prompts.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the loaded configuration. Secrets are masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate template configuration",
	RunE:  runConfigGenerate,
}

var configPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Print the default system prompts as YAML",
	RunE:  runConfigPrompts,
}

var (
	configOutput string
	configEnv    string
)

func init() {
	configGenerateCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Output file path (stdout if not specified)")
	configGenerateCmd.Flags().StringVar(&configEnv, "env", "development", "Environment (development, production)")
	configPromptsCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Output file path (stdout if not specified)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configGenerateCmd)
	ConfigCmd.AddCommand(configPromptsCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := yaml.Marshal(maskSecrets(*cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println("# =====================")
	fmt.Println()
	fmt.Print(string(data))

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	fmt.Printf("Validating configuration: %s\n\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("✗ Failed to load configuration")
		return err
	}

	fmt.Println("✓ Configuration loaded successfully")

	if err := cfg.Validate(); err != nil {
		fmt.Println("✗ Configuration validation failed")
		return err
	}

	if _, err := orchestrator.LoadSystemPrompts(cfg.Orchestration.PromptsFile); err != nil {
		fmt.Println("✗ System prompts file is invalid")
		return err
	}

	fmt.Println("✓ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Server:     %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Database:   %s\n", cfg.Database.Type)
	fmt.Printf("  Redis lock: %v\n", cfg.Redis.Enabled)
	fmt.Printf("  Auth:       %v\n", cfg.Auth.Enabled)
	fmt.Printf("  Prometheus: %v\n", cfg.Monitoring.Prometheus.Enabled)

	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(generateTemplateConfig(configEnv))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	output := `# Multi-AI Orchestrator Configuration File
# =========================================
#
# API keys can also be set with OPENAI_API_KEY, GEMINI_API_KEY,
# PERPLEXITY_API_KEY and JWT_SECRET.
#
# Environment: ` + configEnv + `

` + string(data)

	return writeOutput(output)
}

func runConfigPrompts(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(orchestrator.DefaultSystemPrompts())
	if err != nil {
		return fmt.Errorf("failed to marshal prompts: %w", err)
	}
	return writeOutput(string(data))
}

func writeOutput(output string) error {
	if configOutput == "" {
		fmt.Print(output)
		return nil
	}

	if err := os.WriteFile(configOutput, []byte(output), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Printf("✓ File generated: %s\n", configOutput)
	return nil
}

// maskSecrets oscura chiavi e segreti prima della stampa
func maskSecrets(cfg config.Config) config.Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}

	cfg.Auth.JWTSecret = mask(cfg.Auth.JWTSecret)
	cfg.Redis.Password = mask(cfg.Redis.Password)
	cfg.Providers.ChatGPT.APIKey = mask(cfg.Providers.ChatGPT.APIKey)
	cfg.Providers.Gemini.APIKey = mask(cfg.Providers.Gemini.APIKey)
	cfg.Providers.Perplexity.APIKey = mask(cfg.Providers.Perplexity.APIKey)
	if cfg.Database.Type == "postgres" {
		cfg.Database.Connection = mask(cfg.Database.Connection)
	}
	return cfg
}

func generateTemplateConfig(env string) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:      5000,
			Host:      "0.0.0.0",
			RateLimit: 100,
		},
		Database: database.Config{
			Type:       "sqlite",
			Connection: "./data/multiorch.db",
			MaxConns:   25,
			LogLevel:   "warn",
		},
		Redis: config.RedisConfig{
			Host: "localhost:6379",
		},
		Auth: config.AuthConfig{
			Enabled: true,
			Issuer:  "multiorch",
		},
		Providers: config.ProvidersConfig{
			Timeout: 60 * time.Second,
			ChatGPT: config.ProviderConfig{
				BaseURL: "https://api.openai.com",
				Models:  []string{"gpt-4o-mini"},
			},
			Gemini: config.ProviderConfig{
				BaseURL: gemini.DefaultBaseURL,
				Models:  gemini.DefaultModels,
			},
			Perplexity: config.ProviderConfig{
				BaseURL: "https://api.perplexity.ai",
				Models:  []string{"sonar"},
			},
		},
		Orchestration: config.OrchestrationConfig{
			LockTTL: 15 * time.Minute,
		},
	}

	if env == "production" {
		cfg.Database.Type = "postgres"
		cfg.Database.Connection = "host=localhost user=multiorch password=changeme dbname=multiorch sslmode=require"
		cfg.Database.MaxConns = 100
		cfg.Redis.Enabled = true
		cfg.Monitoring.Logging.Level = "info"
		cfg.Monitoring.Logging.Format = "json"
	} else {
		cfg.Auth.Enabled = false
		cfg.Monitoring.Logging.Level = "debug"
		cfg.Monitoring.Logging.Format = "console"
	}

	cfg.Monitoring.Prometheus.Enabled = true

	return cfg
}
