package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var discoveredMinMentions int

var discoveredCmd = &cobra.Command{
	Use:   "discovered",
	Short: "List unreviewed names found outside the catalog",
	Long: `List discovered entities waiting for review, most mentioned first.
Discovered names are never added to the catalog automatically.

Examples:
  signalroom discovered
  signalroom discovered --min-mentions 10 --json`,
	RunE: runDiscovered,
}

func init() {
	discoveredCmd.Flags().IntVar(&discoveredMinMentions, "min-mentions", 3, "minimum sightings to list")
}

func runDiscovered(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := newEnrichService(ctx, "fast", 0)
	if err != nil {
		return err
	}
	queue, err := svc.Discovered(ctx, discoveredMinMentions)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), queue)
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(queue) == 0 {
		p.hint("No unreviewed entities with at least %d mentions.", discoveredMinMentions)
		return nil
	}
	p.heading("Discovered entities (%d)", len(queue))
	for _, d := range queue {
		p.line("%-30s %-12s %5d mentions  last seen %s",
			d.Name, d.Type, d.MentionCount, d.LastSeen.Format("2006-01-02 15:04"))
		if len(d.SampleMentions) > 0 {
			p.hint("    %s", truncateLine(d.SampleMentions[0], 80))
		}
	}
	return nil
}

func truncateLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return fmt.Sprintf("%s…", string([]rune(s)[:n-1]))
}
