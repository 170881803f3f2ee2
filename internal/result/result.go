// Package result defines the data produced by a harness run.
package result

import (
	"time"

	"github.com/nadzzz/ttsprobe/internal/audio"
)

// Kind is the category of a load probe outcome.
type Kind string

const (
	// KindLoaded means the engine's model is loaded and ready.
	KindLoaded Kind = "loaded"

	// KindNeedsDownload means the model weights are not present yet.
	KindNeedsDownload Kind = "needs_download"

	// KindFailed means the load call failed or reported an error.
	KindFailed Kind = "failed"

	// KindSkipped means the engine was not contacted.
	KindSkipped Kind = "skipped"
)

// Outcome is the classified result of one load probe.
type Outcome struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Message is the failure detail for KindFailed or the reason for KindSkipped.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Loaded returns a KindLoaded outcome.
func Loaded() Outcome { return Outcome{Kind: KindLoaded} }

// NeedsDownload returns a KindNeedsDownload outcome.
func NeedsDownload() Outcome { return Outcome{Kind: KindNeedsDownload} }

// Failed returns a KindFailed outcome with the given detail.
func Failed(msg string) Outcome { return Outcome{Kind: KindFailed, Message: msg} }

// Skipped returns a KindSkipped outcome with the given reason.
func Skipped(reason string) Outcome { return Outcome{Kind: KindSkipped, Message: reason} }

// Mode identifies what a run exercised.
type Mode string

const (
	ModeLoad      Mode = "load"
	ModeSynthesis Mode = "synthesis"
)

// PhraseResult is one synthesis attempt for an engine.
type PhraseResult struct {
	Text      string        `json:"text" yaml:"text"`
	Passed    bool          `json:"passed" yaml:"passed"`
	SavedPath string        `json:"saved_path,omitempty" yaml:"saved_path,omitempty"`
	Audio     *audio.Report `json:"audio,omitempty" yaml:"audio,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// EngineResult is everything recorded about one engine during a run.
type EngineResult struct {
	// EngineID is the registry id.
	EngineID string `json:"engine_id" yaml:"engine_id"`

	// Name is the display name.
	Name string `json:"name" yaml:"name"`

	// Probe is set in load mode.
	Probe *Outcome `json:"probe,omitempty" yaml:"probe,omitempty"`

	// Phrases is set in synthesis mode, in phrase order.
	Phrases []PhraseResult `json:"phrases,omitempty" yaml:"phrases,omitempty"`
}

// Succeeded reports whether the engine fully succeeded: it loaded, or every
// synthesis phrase passed.
func (e EngineResult) Succeeded() bool {
	if e.Probe != nil {
		return e.Probe.Kind == KindLoaded
	}
	if len(e.Phrases) == 0 {
		return false
	}
	for _, p := range e.Phrases {
		if !p.Passed {
			return false
		}
	}
	return true
}

// PassedPhrases counts the phrases that passed.
func (e EngineResult) PassedPhrases() int {
	n := 0
	for _, p := range e.Phrases {
		if p.Passed {
			n++
		}
	}
	return n
}

// Run is the aggregate of one harness invocation.
type Run struct {
	ID         string         `json:"id" yaml:"id"`
	Mode       Mode           `json:"mode" yaml:"mode"`
	Target     string         `json:"target" yaml:"target"`
	OutputDir  string         `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Engines    []EngineResult `json:"engines" yaml:"engines"`
}

// Add appends an engine result, keeping iteration order.
func (r *Run) Add(e EngineResult) {
	r.Engines = append(r.Engines, e)
}

// Count returns how many engines have a probe outcome of the given kind.
func (r *Run) Count(k Kind) int {
	n := 0
	for _, e := range r.Engines {
		if e.Probe != nil && e.Probe.Kind == k {
			n++
		}
	}
	return n
}

// Tested is the number of engines actually exercised (skips excluded).
func (r *Run) Tested() int {
	return len(r.Engines) - r.Count(KindSkipped)
}

// Succeeded counts engines that fully succeeded.
func (r *Run) Succeeded() int {
	n := 0
	for _, e := range r.Engines {
		if e.Succeeded() {
			n++
		}
	}
	return n
}

// WithKind returns the engines whose probe outcome is of the given kind.
func (r *Run) WithKind(k Kind) []EngineResult {
	var out []EngineResult
	for _, e := range r.Engines {
		if e.Probe != nil && e.Probe.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
