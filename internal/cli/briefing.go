package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fxwatch/internal/insight"
)

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Send the daily briefing to every user now",
	Args:  cobra.NoArgs,
	RunE:  briefingAction,
}

func init() {
	rootCmd.AddCommand(briefingCmd)
}

func briefingAction(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireLLM("daily briefing"); err != nil {
		return err
	}
	a, err := newApp(cfg, log, appOptions{telegram: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sent, err := a.insight.SendBriefings(cmd.Context(), a.messenger)
	if err != nil {
		return err
	}
	printBriefings(cmd.OutOrStdout(), sent)
	return nil
}

func printBriefings(out io.Writer, sent []insight.Delivered) {
	fmt.Fprintf(out, "Briefings sent: %d\n", len(sent))
	for _, d := range sent {
		fmt.Fprintf(out, "\n--- user %d ---\n%s\n", d.UserID, d.Text)
	}
}
