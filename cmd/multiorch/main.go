package main

import (
	"fmt"
	"os"

	"github.com/biodoia/multiorch/cmd/multiorch/commands"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "multiorch",
		Short: "Multi-AI Orchestrator",
		Long: `Multi-AI Orchestrator

Routes a prompt either to a single upstream provider (chatgpt, gemini,
perplexity) or through a Manager / Frontend / Backend pipeline whose
outputs are synthesized into one reply.

Features:
  • Per-provider model fallback on overload
  • Concurrent frontend and backend dispatch
  • Persistent conversations with atomic turns
  • Prometheus metrics and structured logs`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.AskCmd)
	rootCmd.AddCommand(commands.ProvidersCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.TokenCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("multiorch version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
