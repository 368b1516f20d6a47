package cli

import (
	"strings"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/service"
	"github.com/spf13/cobra"
)

var (
	scoreCaption  string
	scoreLikes    int
	scoreProvider string
)

var scoreCmd = &cobra.Command{
	Use:   "score <text>",
	Short: "Score ad-hoc text against the catalog without writing",
	Long: `Run extraction and sentiment scoring on a single piece of text and print
the mentions, discovered names and the signals enrichment would write.

Examples:
  signalroom score "Taylor and Ryan are great"
  signalroom score "he was robbed" --caption "Ryan Reynolds at the awards" --provider llm`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreCaption, "caption", "", "parent post caption")
	scoreCmd.Flags().IntVar(&scoreLikes, "likes", 0, "like count used for the engagement weight")
	scoreCmd.Flags().StringVar(&scoreProvider, "provider", "", "sentiment provider: fast, llm or hybrid")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := newEnrichService(ctx, scoreProvider, 0)
	if err != nil {
		return err
	}
	pv, err := svc.Preview(ctx, models.Comment{
		Text:        strings.Join(args, " "),
		PostCaption: scoreCaption,
		Likes:       scoreLikes,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), pv)
	}
	printPreview(newPrinter(cmd.OutOrStdout()), pv)
	return nil
}

func printPreview(p *printer, pv *service.Preview) {
	p.heading("Mentions")
	if len(pv.Mentions) == 0 {
		p.hint("  none")
	}
	for _, m := range pv.Mentions {
		p.line("  %-24s %-11s %.2f  %q", m.EntityName, m.Method, m.Confidence, m.MatchedText)
	}

	if len(pv.Discovered) > 0 {
		p.line("")
		p.heading("Not in catalog")
		for _, d := range pv.Discovered {
			p.line("  %-24s %s", d.Name, d.Type)
		}
	}

	p.line("")
	p.heading("Sentiment")
	p.line("  score %.2f  confidence %.2f  model %s", pv.Result.Score, pv.Result.Confidence, pv.Result.Model)
	if a := pv.Result.Analysis; a != nil {
		p.line("  emotion %s  stance %s  toxicity %.2f  sarcasm %t", a.Emotion, a.Stance, a.Toxicity, a.Sarcasm)
		if len(a.Topics) > 0 {
			p.line("  topics %s", strings.Join(a.Topics, ", "))
		}
	}

	p.line("")
	p.heading("Signals")
	for _, s := range pv.Signals {
		scope := "comment"
		if s.EntityID != nil {
			scope = *s.EntityID
		}
		p.line("  %-10s %-20s %-10s conf %.2f  weight %.2f", s.Kind, scope, s.Value, s.Confidence, s.Weight)
	}
	if verbose {
		p.printMetrics(pv.Metrics)
	}
}
