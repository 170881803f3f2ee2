// Package report renders harness runs for people and for machines.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nadzzz/ttsprobe/internal/engine"
	"github.com/nadzzz/ttsprobe/internal/harness"
	"github.com/nadzzz/ttsprobe/internal/result"
)

const ruleWidth = 50

// Console writes live progress and the final summary as plain text.
// It implements harness.Observer.
type Console struct {
	w io.Writer
}

var _ harness.Observer = (*Console)(nil)

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
}

// Header prints a section banner.
func (c *Console) Header(text string) {
	rule := strings.Repeat("=", ruleWidth)
	c.printf("\n%s\n %s\n%s\n", rule, text, rule)
}

// Println prints a plain line.
func (c *Console) Println(text string) {
	c.printf("%s\n", text)
}

// ProbeStarted prints the engine name; the outcome follows on the same line.
func (c *Console) ProbeStarted(d engine.Descriptor) {
	c.printf("  %s... ", d.Name)
}

// ProbeFinished completes the engine's line.
func (c *Console) ProbeFinished(_ engine.Descriptor, o result.Outcome) {
	switch o.Kind {
	case result.KindLoaded:
		c.printf("✓ Loaded\n")
	case result.KindNeedsDownload:
		c.printf("⚠ Needs download\n")
	case result.KindSkipped:
		c.printf("⏭ Skipped (%s)\n", o.Message)
	default:
		c.printf("❌ %s\n", o.Message)
	}
}

// EngineStarted opens a section for the engine.
func (c *Console) EngineStarted(d engine.Descriptor) {
	c.Header("Testing " + d.Name)
}

// PhraseStarted announces a synthesis attempt.
func (c *Console) PhraseStarted(d engine.Descriptor, text string) {
	c.printf("\n  Testing: %s\n", d.Name)
	c.printf("  Text: %s...\n", truncate(text, 50))
}

// PhraseFinished prints the attempt's verdict.
func (c *Console) PhraseFinished(_ engine.Descriptor, pr result.PhraseResult) {
	if !pr.Passed {
		c.printf("  ❌ %s\n", pr.Error)
		return
	}
	if a := pr.Audio; a != nil {
		c.printf("  ✓ Generated: %.2fs @ %dHz (%s)\n", a.DurationSeconds, a.SampleRateHz, humanize.Bytes(uint64(a.SizeBytes)))
	}
	c.printf("  ✓ Saved to: %s\n", pr.SavedPath)
}

// EngineFinished prints how many phrases passed.
func (c *Console) EngineFinished(_ engine.Descriptor, er result.EngineResult, phrases int) {
	c.printf("\n  Result: %d/%d phrases succeeded\n", er.PassedPhrases(), phrases)
}

// LoadSummary prints counts per outcome and the engines in each group.
func (c *Console) LoadSummary(run *result.Run) {
	c.Header("Summary")

	loaded := run.Count(result.KindLoaded)
	download := run.Count(result.KindNeedsDownload)
	failed := run.Count(result.KindFailed)
	skipped := run.Count(result.KindSkipped)
	tested := run.Tested()

	c.printf("✓ Loaded:         %d/%d\n", loaded, tested)
	c.printf("⚠ Needs download: %d/%d\n", download, tested)
	c.printf("❌ Failed:         %d/%d\n", failed, tested)
	if skipped > 0 {
		c.printf("⏭ Skipped:        %d\n", skipped)
	}

	groups := []struct {
		kind  result.Kind
		title string
		mark  string
	}{
		{result.KindLoaded, "Engines ready for use:", "✓"},
		{result.KindNeedsDownload, "Engines needing model download:", "⚠"},
		{result.KindFailed, "Failed engines:", "❌"},
	}
	for _, g := range groups {
		engines := run.WithKind(g.kind)
		if len(engines) == 0 {
			continue
		}
		c.printf("\n%s\n", g.title)
		for _, e := range engines {
			if g.kind == result.KindFailed && e.Probe.Message != "" {
				c.printf("  %s %s (%s)\n", g.mark, e.Name, e.Probe.Message)
				continue
			}
			c.printf("  %s %s\n", g.mark, e.Name)
		}
	}

	c.printf("\nDone!\n")
}

// SynthesisSummary prints passed/total and a line per engine.
func (c *Console) SynthesisSummary(run *result.Run) {
	c.Header("Summary")

	c.printf("Engines tested: %d\n", run.Tested())
	c.printf("Passed: %d/%d\n", run.Succeeded(), run.Tested())
	for _, e := range run.Engines {
		if e.Probe != nil && e.Probe.Kind == result.KindSkipped {
			c.printf("  ⏭ %s (skipped: %s)\n", e.Name, e.Probe.Message)
			continue
		}
		mark := "❌"
		if e.Succeeded() {
			mark = "✓"
		}
		c.printf("  %s %s (%d/%d phrases)\n", mark, e.Name, e.PassedPhrases(), len(e.Phrases))
	}

	if run.OutputDir != "" {
		c.printf("\nAudio files saved to: %s\n", run.OutputDir)
	}
	c.printf("Done!\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
