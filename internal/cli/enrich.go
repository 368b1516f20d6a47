package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/service"
	"github.com/spf13/cobra"
)

var (
	enrichIDs       []string
	enrichSince     string
	enrichAll       bool
	enrichLimit     int
	enrichProvider  string
	enrichBatchSize int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Extract mentions and score sentiment for stored comments",
	Long: `Run an enrichment pass. Select comments by id, by posting time or take
every comment that has not been enriched yet.

Examples:
  signalroom enrich --all
  signalroom enrich --ids c1,c2 --provider llm
  signalroom enrich --since 2026-03-01T00:00:00Z --limit 500
  signalroom enrich --since 24h`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichIDs, "ids", nil, "comment ids to enrich")
	enrichCmd.Flags().StringVar(&enrichSince, "since", "", "comments posted since (RFC3339 or a duration like 24h)")
	enrichCmd.Flags().BoolVar(&enrichAll, "all", false, "every comment not yet enriched")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "maximum comments to process (0 = no limit)")
	enrichCmd.Flags().StringVar(&enrichProvider, "provider", "", "sentiment provider: fast, llm or hybrid (default from SIGNALROOM_PROVIDER)")
	enrichCmd.Flags().IntVar(&enrichBatchSize, "batch-size", 0, "comments per commit (default from SIGNALROOM_BATCH_SIZE)")
	enrichCmd.MarkFlagsMutuallyExclusive("ids", "since", "all")
	enrichCmd.MarkFlagsOneRequired("ids", "since", "all")
}

// parseFilter builds the comment selector from the enrich flags.
func parseFilter(ids []string, since string, all bool, limit int, now time.Time) (models.CommentFilter, error) {
	f := models.CommentFilter{IDs: ids, OnlyUnenriched: all, Limit: limit}
	if since != "" {
		t, err := parseSince(since, now)
		if err != nil {
			return f, err
		}
		f.Since = &t
	}
	return f, f.Validate()
}

func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC3339 or a duration", s)
	}
	return now.Add(-d), nil
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	filter, err := parseFilter(enrichIDs, enrichSince, enrichAll, enrichLimit, time.Now().UTC())
	if err != nil {
		return err
	}
	svc, err := newEnrichService(ctx, enrichProvider, enrichBatchSize)
	if err != nil {
		return err
	}

	stats, runErr := svc.Enrich(ctx, filter)
	if stats == nil {
		return fmt.Errorf("enrich: %w", runErr)
	}
	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
			return err
		}
	} else {
		printEnrichStats(newPrinter(cmd.OutOrStdout()), stats)
	}
	if runErr != nil {
		return fmt.Errorf("enrich: %w", runErr)
	}
	return nil
}

func printEnrichStats(p *printer, s *service.EnrichStats) {
	p.heading("Enrichment run %s", s.RunID)
	p.line("Provider:            %s", s.Provider)
	p.line("Comments selected:   %d", s.CommentsSelected)
	p.line("Comments processed:  %d", s.CommentsProcessed)
	p.line("Signals created:     %d", s.SignalsCreated)
	p.line("Signals updated:     %d", s.SignalsUpdated)
	p.line("Entities discovered: %d", s.EntitiesDiscovered)
	p.line("Batches committed:   %d", s.BatchesCommitted)

	if len(s.Errors) == 0 {
		p.ok("No errors")
	} else {
		p.fail("%d errors", len(s.Errors))
		for _, e := range s.Errors {
			p.hint("  %s", e)
		}
	}
	if verbose {
		p.printMetrics(s.Metrics)
	}
}
