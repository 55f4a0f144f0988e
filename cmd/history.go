package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/jandubois/smokecheck/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded smoke-test runs",
	Long: `List recent runs from the history database, newest first.
With --name, show the recent results of a single probe instead.
With --run, show every probe result of one run in execution order.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().String("name", "", "Show the trend of one probe, e.g. \"Response Time\"")
	historyCmd.Flags().Int64("run", 0, "Show the probe results of one run by ID")
	historyCmd.MarkFlagsMutuallyExclusive("name", "run")
	historyCmd.Flags().Duration("prune", 0, "Delete runs older than this before listing (0 = keep all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	name, _ := cmd.Flags().GetString("name")
	prune, _ := cmd.Flags().GetDuration("prune")
	runID, _ := cmd.Flags().GetInt64("run")
	out := cmd.OutOrStdout()

	path := getDatabasePath(cmd)
	database, err := db.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer database.Close()

	if prune > 0 {
		n, err := database.PruneRuns(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d runs older than %s\n", n, units.HumanDuration(prune))
	}

	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "History: %s (%s)\n\n", path, units.HumanSize(float64(info.Size())))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if name != "" {
		return printTrend(cmd, w, database, name, limit)
	}
	if runID != 0 {
		return printRun(cmd, w, database, runID)
	}

	runs, err := database.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintln(w, "ID\tWHEN\tTARGET\tRESULT\tPASSED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%.2fs\n",
			run.ID, age(run.StartedAt), run.BaseURL, verdict(run.Passed),
			run.PassedTests, run.TotalTests, run.DurationSeconds)
	}
	return nil
}

func printRun(cmd *cobra.Command, w *tabwriter.Writer, database *db.DB, runID int64) error {
	records, err := database.RunResults(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No run with ID %d.\n", runID)
		return nil
	}

	fmt.Fprintf(w, "Run %d, %s\n\n", runID, age(records[0].StartedAt))
	fmt.Fprintln(w, "PROBE\tRESULT\tDURATION\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%.0fms\t%s\n", rec.Name, verdict(rec.Passed), rec.DurationMs, oneLine(rec.ErrorMessage))
	}
	return nil
}

func printTrend(cmd *cobra.Command, w *tabwriter.Writer, database *db.DB, name string, limit int) error {
	records, err := database.ProbeTrend(cmd.Context(), name, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No results recorded for %q.\n", name)
		return nil
	}

	fmt.Fprintln(w, "RUN\tWHEN\tRESULT\tDURATION\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.0fms\t%s\n",
			rec.RunID, age(rec.StartedAt), verdict(rec.Passed), rec.DurationMs, oneLine(rec.ErrorMessage))
	}
	return nil
}

func oneLine(msg *string) string {
	if msg == nil {
		return ""
	}
	return strings.ReplaceAll(*msg, "\n", " ")
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return units.HumanDuration(time.Since(t)) + " ago"
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
