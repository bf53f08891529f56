// Package reporter renders run progress on the console.
//
// The console reporter mirrors the classic batch-runner output: a header
// line when the project starts, one "   [ NN%] Run <case> ... <outcome>"
// line per case, and a closing summary with per-bucket counts. Outcome
// words are colorized when stdout is a terminal.
package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/benchrun/internal/project"
)

// outcomeColors maps the leading word of an outcome to its display color.
type outcomeColors struct {
	success *color.Color
	timeout *color.Color
	failed  *color.Color
	skipped *color.Color
}

func newOutcomeColors(enabled bool) *outcomeColors {
	c := &outcomeColors{
		success: color.New(color.FgGreen),
		timeout: color.New(color.FgYellow),
		failed:  color.New(color.FgRed),
		skipped: color.New(color.FgCyan),
	}
	for _, cc := range []*color.Color{c.success, c.timeout, c.failed, c.skipped} {
		if enabled {
			cc.EnableColor()
		} else {
			cc.DisableColor()
		}
	}
	return c
}

// colorize picks a color from the outcome's leading word. Unknown outcomes
// pass through unstyled.
func (c *outcomeColors) colorize(outcome string) string {
	switch {
	case outcome == project.BucketSuccess:
		return c.success.Sprint(outcome)
	case outcome == project.BucketTimeout:
		return c.timeout.Sprint(outcome)
	case outcome == project.BucketFailed:
		return c.failed.Sprint(outcome)
	case strings.HasPrefix(outcome, "skipped") || outcome == "dryrun":
		return c.skipped.Sprint(outcome)
	}
	return outcome
}

// Console writes progress lines to a single writer.
type Console struct {
	out      io.Writer
	colors   *outcomeColors
	total    int
	finished int
}

// NewConsole returns a reporter writing to out. Colors are enabled only
// when out is a terminal.
func NewConsole(out io.Writer) *Console {
	enabled := false
	if f, ok := out.(*os.File); ok {
		enabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{out: out, colors: newOutcomeColors(enabled)}
}

// NewConsoleColored returns a reporter with explicit color control, used
// by tests and by callers that already decided on terminal handling.
func NewConsoleColored(out io.Writer, colored bool) *Console {
	return &Console{out: out, colors: newOutcomeColors(colored)}
}

// ProjectBegin prints the project header and resets progress counters.
func (c *Console) ProjectBegin(p *project.Project) {
	fmt.Fprintf(c.out, "Start project %s:\n", p.Name)
	c.total = p.CountCases()
	c.finished = 0
}

// ProjectEnd prints the closing line and the per-bucket summary.
func (c *Console) ProjectEnd(p *project.Project, stats *project.RunStats) {
	fmt.Fprintf(c.out, "Done.\n")
	counts := stats.Counts()
	parts := make([]string, 0, len(counts))
	for _, bc := range counts {
		parts = append(parts, fmt.Sprintf("%d %s", bc.Count, bc.Bucket))
	}
	fmt.Fprintf(c.out, "%s\n", strings.Join(parts, ", "))
}

// CaseBegin prints the progress prefix for a case, leaving the line open
// for CaseEnd to finish.
func (c *Console) CaseBegin(p *project.Project, cs *project.Case) {
	c.finished++
	completed := 0.0
	if c.total > 0 {
		completed = float64(c.finished) / float64(c.total) * 100
	}
	fmt.Fprintf(c.out, "   [%3.0f%%] Run %s ... ", completed, cs.RelPath)
}

// CaseEnd completes the progress line with the case outcome.
func (c *Console) CaseEnd(p *project.Project, cs *project.Case, outcome string) {
	fmt.Fprintf(c.out, "%s\n", c.colors.colorize(outcome))
}
