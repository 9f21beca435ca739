package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var checkForce bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one check cycle over every source",
	Args:  cobra.NoArgs,
	RunE:  checkAction,
}

func init() {
	checkCmd.Flags().BoolVar(&checkForce, "force", false, "process the latest article even if already seen")
	rootCmd.AddCommand(checkCmd)
}

func checkAction(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	// Telegram delivery is used when configured; otherwise articles are only
	// summarized, stored and mailed.
	a, err := newApp(cfg, log, appOptions{telegram: cfg.Telegram.BotToken != "", delivery: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	report, err := a.watcher.Check(cmd.Context(), checkForce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed: %d, up to date: %d, failed: %d\n", len(report.Processed), len(report.UpToDate), len(report.Failed))
	for _, id := range report.Processed {
		fmt.Fprintf(out, "  + %s\n", id)
	}
	failed := make([]string, 0, len(report.Failed))
	for id := range report.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(out, "  ! %s: %v\n", id, report.Failed[id])
	}
	return nil
}
