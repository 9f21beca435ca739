package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fxwatch/internal/source"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the article history by title or tag",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchAction,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered sources",
	Args:  cobra.NoArgs,
	RunE:  sourcesAction,
}

var askCmd = &cobra.Command{
	Use:   "ask <userId> <question>",
	Short: "Answer a question from a user's subscribed sources",
	Args:  cobra.MinimumNArgs(2),
	RunE:  askAction,
}

func init() {
	rootCmd.AddCommand(searchCmd, sourcesCmd, askCmd)
}

func searchAction(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	term := strings.Join(args, " ")
	results, err := a.repo.Search(cmd.Context(), term)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No article found for %q\n", term)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Date.In(a.loc).Format("2006-01-02 15:04"), e.Source, e.Title, e.URL)
	}
	return tw.Flush()
}

// sourcesAction needs no storage: the catalog comes from configuration.
func sourcesAction(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := source.DefaultRegistry(cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND")
	for _, s := range reg.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Kind)
	}
	return tw.Flush()
}

func askAction(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	answer, err := a.insight.Ask(cmd.Context(), userID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
