package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	manager "github.com/biodoia/multiorch/internal/provider-manager"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/spf13/cobra"
)

// ProvidersCmd rappresenta il comando providers
var ProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect upstream providers",
	Long: `Inspect the closed set of upstream providers (chatgpt, gemini,
perplexity), their model candidates and credential status.`,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	Long:  `Display every provider with its ordered model candidates and whether a credential is configured.`,
	Example: `  # List providers
  multiorch providers list

  # List with JSON output
  multiorch providers list --json`,
	RunE: runProvidersList,
}

var jsonOutput bool

func init() {
	providersListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	ProvidersCmd.AddCommand(providersListCmd)
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pm, err := manager.New(cfg.Providers)
	if err != nil {
		return err
	}

	infos := pm.ListProviders()
	if jsonOutput {
		return printJSON(infos)
	}

	return printProvidersTable(infos)
}

func printProvidersTable(infos []manager.ProviderInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREDENTIAL\tCANDIDATES")
	fmt.Fprintln(w, "----\t----------\t----------")

	for _, p := range infos {
		credential := "missing"
		if p.HasCredential {
			credential = "set"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, credential, strings.Join(p.Candidates, ", "))
	}

	return w.Flush()
}

func printJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
