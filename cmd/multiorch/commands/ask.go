package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/biodoia/multiorch/internal/orchestrator"
	"github.com/biodoia/multiorch/internal/providers"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/spf13/cobra"
)

var (
	askProvider string
	askManager  string
	askFrontend string
	askBackend  string
	askShowAll  bool
	askJSON     bool
)

// AskCmd esegue una orchestrazione dal terminale senza persistenza
var AskCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Run one orchestration from the terminal",
	Long: `Run a single prompt against one provider, or through the
Manager / Frontend / Backend pipeline when all three roles are given.
Nothing is stored. Without arguments the prompt is read from stdin.`,
	Example: `  # Single provider
  multiorch ask --provider gemini "Explain CORS in one paragraph"

  # Orchestrated
  multiorch ask --manager chatgpt --frontend gemini --backend perplexity \
    "Build a login form with email and password."`,
	RunE: runAsk,
}

func init() {
	AskCmd.Flags().StringVarP(&askProvider, "provider", "p", "", "Provider for single mode (chatgpt, gemini, perplexity)")
	AskCmd.Flags().StringVar(&askManager, "manager", "", "Manager provider (multi mode)")
	AskCmd.Flags().StringVar(&askFrontend, "frontend", "", "Frontend provider (multi mode)")
	AskCmd.Flags().StringVar(&askBackend, "backend", "", "Backend provider (multi mode)")
	AskCmd.Flags().BoolVar(&askShowAll, "show-all", false, "Print manager, frontend and backend outputs too")
	AskCmd.Flags().BoolVar(&askJSON, "json", false, "Output the full result as JSON")
	AskCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to stderr in console format so stdout carries only the reply
	cfg.Monitoring.Logging.Format = "console"
	if !verbose {
		cfg.Monitoring.Logging.Level = "warn"
	}
	setupLogger(cfg.Monitoring.Logging, verbose, true)

	prompt := strings.Join(args, " ")
	if strings.TrimSpace(prompt) == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = string(data)
	}

	req, err := buildAskRequest(askProvider, askManager, askFrontend, askBackend, prompt)
	if err != nil {
		return err
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.Orchestrate(ctx, req)
	if err != nil {
		var oe *orchestrator.Error
		if errors.As(err, &oe) {
			return fmt.Errorf("%s (%s)", oe.Message(), oe.Kind)
		}
		return err
	}

	if askJSON {
		return printJSON(result)
	}

	out := cmd.OutOrStdout()
	if askShowAll && result.Mode == orchestrator.ModeMulti {
		fmt.Fprintf(out, "## Manager\n%s\n\n", result.ManagerRaw)
		fmt.Fprintf(out, "## Frontend\n%s\n\n", result.FrontendOutput)
		fmt.Fprintf(out, "## Backend\n%s\n\n", result.BackendOutput)
		fmt.Fprintln(out, "## Final")
	}
	fmt.Fprintln(out, result.FinalText)
	return nil
}

// buildAskRequest sceglie la modalità in base ai flag: i tre ruoli insieme
// selezionano multi, altrimenti serve --provider.
func buildAskRequest(provider, mgr, frontend, backend, prompt string) (orchestrator.Request, error) {
	req := orchestrator.Request{UserPrompt: prompt}

	roles := 0
	for _, r := range []string{mgr, frontend, backend} {
		if r != "" {
			roles++
		}
	}

	switch {
	case roles == 3:
		req.Mode = orchestrator.ModeMulti
		req.Bindings = orchestrator.Bindings{
			Manager:  providers.Name(mgr),
			Frontend: providers.Name(frontend),
			Backend:  providers.Name(backend),
		}
	case roles > 0:
		return req, fmt.Errorf("--manager, --frontend and --backend must be given together")
	case provider != "":
		req.Mode = orchestrator.ModeSingle
		req.Bindings = orchestrator.Bindings{Provider: providers.Name(provider)}
	default:
		return req, fmt.Errorf("either --provider or --manager/--frontend/--backend is required")
	}

	return req, nil
}
