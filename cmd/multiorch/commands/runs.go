package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/biodoia/multiorch/pkg/config"
	"github.com/biodoia/multiorch/pkg/database"
	"github.com/biodoia/multiorch/pkg/models"
	"github.com/spf13/cobra"
)

// RunsCmd mostra il log delle orchestrazioni
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent orchestration runs",
	Long:  `Display the most recent orchestration runs with outcome, failing stage and latency.`,
	Example: `  # Last 20 runs
  multiorch runs

  # Last 100 runs as JSON
  multiorch runs --limit 100 --json`,
	RunE: runRuns,
}

var runsLimit int

func init() {
	RunsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
	RunsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.GetRecentRuns(runsLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch runs: %w", err)
	}

	if jsonOutput {
		return printJSON(runs)
	}

	return printRunsTable(runs)
}

func printRunsTable(runs []models.OrchestrationRun) error {
	if len(runs) == 0 {
		fmt.Println("No orchestration runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tMODE\tRESULT\tSTAGE\tROLE\tLATENCY\tERROR")
	fmt.Fprintln(w, "----\t----\t------\t-----\t----\t-------\t-----")

	for _, r := range runs {
		result := "ok"
		if !r.Success {
			result = r.ErrorKind
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
			formatTimeSince(r.Timestamp),
			r.Mode,
			result,
			dash(r.Stage),
			dash(r.Role),
			r.LatencyMs,
			truncate(r.ErrorMessage, 60),
		)
	}

	return w.Flush()
}

func initDB(cmd *cobra.Command) (*database.DB, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.New(&cfg.Database)
}

func formatTimeSince(t time.Time) string {
	duration := time.Since(t)
	if duration < time.Minute {
		return fmt.Sprintf("%ds ago", int(duration.Seconds()))
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
