package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/signalroom/internal/metrics"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Heading lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Heading: lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Heading).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// printer writes styled text when stdout is a terminal and plain text otherwise.
type printer struct {
	w     io.Writer
	theme Theme
	color bool
}

func newPrinter(w io.Writer) *printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, theme: defaultTheme, color: color}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

func (p *printer) heading(format string, args ...any) {
	title := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.w, p.render(p.theme.headingStyle(), title))
	fmt.Fprintln(p.w, p.render(p.theme.hintStyle(), "═══════════════════════════════════════"))
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) ok(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.theme.successStyle(), fmt.Sprintf(format, args...)))
}

func (p *printer) fail(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.theme.errorStyle(), fmt.Sprintf(format, args...)))
}

func (p *printer) hint(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.theme.hintStyle(), fmt.Sprintf(format, args...)))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMetrics displays the per-run operation timings.
func (p *printer) printMetrics(s metrics.Snapshot) {
	p.line("")
	p.heading("Run metrics (%.1fs)", s.ElapsedSeconds)
	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Extract", s.Extract},
		{"Score (fast)", s.ScoreFast},
		{"LLM generate", s.LLMGenerate},
		{"Store query", s.StoreQuery},
		{"Store upsert", s.StoreUpsert},
		{"Store commit", s.StoreCommit},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		p.line("  %-14s %6d calls  avg %7.1fms  max %6dms", o.name, o.op.Count, o.op.AvgTimeMs, o.op.MaxTimeMs)
		if o.op.TotalInputTokens != nil && o.op.TotalOutputTokens != nil {
			p.line("  %-14s %6d in / %d out tokens", "", *o.op.TotalInputTokens, *o.op.TotalOutputTokens)
		}
	}
	for name, v := range s.Counters {
		p.line("  %-14s %6d", name, v)
	}
}
