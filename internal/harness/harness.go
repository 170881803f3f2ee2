// Package harness drives load probes and synthesis tests across the engine
// registry and collects the results of a run.
//
// Everything is sequential: the serving endpoint handles one model load or
// synthesis at a time, so the harness never has two remote calls in flight.
// A failing engine or phrase is recorded and the run moves on.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/ttsprobe/internal/engine"
	"github.com/nadzzz/ttsprobe/internal/probe"
	"github.com/nadzzz/ttsprobe/internal/result"
	"github.com/nadzzz/ttsprobe/internal/transport"
	"github.com/nadzzz/ttsprobe/internal/tts"
)

// ErrConfiguration is a bad engine selection, detected before any remote call.
var ErrConfiguration = errors.New("configuration error")

// DefaultPhrases are spoken by every engine in synthesis mode.
var DefaultPhrases = []string{
	"Hello from PMOVES.",
	"Audio test complete.",
}

// maxSynthesisError bounds remote error text recorded for a phrase.
const maxSynthesisError = 60

// Observer is told about progress as it happens.
type Observer interface {
	ProbeStarted(d engine.Descriptor)
	ProbeFinished(d engine.Descriptor, o result.Outcome)
	EngineStarted(d engine.Descriptor)
	PhraseStarted(d engine.Descriptor, text string)
	PhraseFinished(d engine.Descriptor, pr result.PhraseResult)
	EngineFinished(d engine.Descriptor, er result.EngineResult, phrases int)
}

// Options configures a Harness.
type Options struct {
	// Target is the endpoint URL, recorded in the run.
	Target string

	// OutputDir receives artifacts that pass validation.
	OutputDir string

	// Phrases overrides DefaultPhrases.
	Phrases []string

	// Observer receives progress events. Nil discards them.
	Observer Observer
}

// Harness is the orchestrator for one run.
type Harness struct {
	registry  *engine.Registry
	prober    *probe.Prober
	tester    *tts.Tester
	target    string
	outputDir string
	phrases   []string
	observer  Observer
}

// New creates a harness that calls through client.
func New(registry *engine.Registry, client transport.Client, opts Options) *Harness {
	phrases := opts.Phrases
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Harness{
		registry:  registry,
		prober:    probe.New(client),
		tester:    tts.New(client, opts.OutputDir),
		target:    opts.Target,
		outputDir: opts.OutputDir,
		phrases:   phrases,
		observer:  obs,
	}
}

func (h *Harness) newRun(mode result.Mode) *result.Run {
	return &result.Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Target:    h.target,
		StartedAt: time.Now(),
	}
}

// RunLoadCheck probes every load-check engine in registry order.
func (h *Harness) RunLoadCheck(ctx context.Context) *result.Run {
	run := h.newRun(result.ModeLoad)
	logger := slog.With("run_id", run.ID, "mode", run.Mode)
	logger.Info("load check started", "target", h.target)

	for _, d := range h.registry.Filter(engine.CapLoadCheck) {
		h.observer.ProbeStarted(d)
		outcome := h.prober.Probe(ctx, d)
		h.observer.ProbeFinished(d, outcome)

		logger.Info("engine probed", "engine", d.ID, "kind", outcome.Kind, "message", outcome.Message)
		run.Add(result.EngineResult{EngineID: d.ID, Name: d.Name, Probe: &outcome})
	}

	run.FinishedAt = time.Now()
	logger.Info("load check complete",
		"loaded", run.Count(result.KindLoaded),
		"tested", run.Tested(),
		"duration", run.FinishedAt.Sub(run.StartedAt))
	return run
}

// SelectSynthesisEngines resolves the engines for synthesis mode from the
// harness registry. See SelectEngines.
func (h *Harness) SelectSynthesisEngines(name string, all bool) ([]engine.Descriptor, error) {
	return SelectEngines(h.registry, name, all)
}

// SelectEngines picks every reference-free engine when all is set, otherwise
// the named one, which must be reference-free. Skipped engines are never
// selected. It makes no remote calls.
func SelectEngines(registry *engine.Registry, name string, all bool) ([]engine.Descriptor, error) {
	var candidates []engine.Descriptor
	for _, d := range registry.Filter(engine.CapReferenceFree) {
		if !d.Skipped() {
			candidates = append(candidates, d)
		}
	}
	if all {
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: no reference-free engines in registry", ErrConfiguration)
		}
		return candidates, nil
	}

	available := strings.Join(engine.Names(candidates), ", ")
	d, err := registry.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: engine %q not in simple test list (available: %s)", ErrConfiguration, name, available)
	}
	if !d.Has(engine.CapReferenceFree) {
		return nil, fmt.Errorf("%w: engine %q needs reference audio (available: %s)", ErrConfiguration, d.Name, available)
	}
	if d.Skipped() {
		return nil, fmt.Errorf("%w: engine %q is skipped: %s (available: %s)", ErrConfiguration, d.Name, d.Skip, available)
	}
	return []engine.Descriptor{d}, nil
}

// RunSynthesis tests every phrase on every given engine. An engine passes
// only if all of its phrases pass. Skipped engines are recorded without a
// remote call.
func (h *Harness) RunSynthesis(ctx context.Context, engines []engine.Descriptor) *result.Run {
	run := h.newRun(result.ModeSynthesis)
	run.OutputDir = h.outputDir
	logger := slog.With("run_id", run.ID, "mode", run.Mode)
	logger.Info("synthesis check started", "target", h.target, "engines", len(engines), "phrases", len(h.phrases))

	for _, d := range engines {
		if d.Skipped() {
			skipped := result.Skipped(d.Skip)
			logger.Warn("engine skipped", "engine", d.ID, "reason", d.Skip)
			run.Add(result.EngineResult{EngineID: d.ID, Name: d.Name, Probe: &skipped})
			continue
		}

		h.observer.EngineStarted(d)
		er := result.EngineResult{EngineID: d.ID, Name: d.Name}

		for _, text := range h.phrases {
			h.observer.PhraseStarted(d, text)
			pr := phraseResult(text, h.tester.Test(ctx, d, text))
			h.observer.PhraseFinished(d, pr)

			if !pr.Passed {
				logger.Warn("phrase failed", "engine", d.ID, "text", text, "error", pr.Error)
			}
			er.Phrases = append(er.Phrases, pr)
		}

		h.observer.EngineFinished(d, er, len(h.phrases))
		logger.Info("engine tested", "engine", d.ID, "passed", er.PassedPhrases(), "phrases", len(h.phrases))
		run.Add(er)
	}

	run.FinishedAt = time.Now()
	logger.Info("synthesis check complete",
		"passed", run.Succeeded(),
		"total", run.Tested(),
		"duration", run.FinishedAt.Sub(run.StartedAt))
	return run
}

func phraseResult(text string, o tts.Outcome) result.PhraseResult {
	pr := result.PhraseResult{
		Text:      text,
		Passed:    o.Passed,
		SavedPath: o.SavedPath,
		Audio:     o.Report,
	}
	if o.Err != nil {
		pr.Error = errorText(o.Err)
	}
	return pr
}

// errorText renders a phrase failure the way operators read it.
func errorText(err error) string {
	var verr *tts.ValidationError
	if errors.As(err, &verr) {
		return "Validation failed: " + verr.Report.Summary()
	}
	if errors.Is(err, tts.ErrNoResult) || errors.Is(err, tts.ErrNoAudioPath) {
		return capitalize(err.Error())
	}
	if errors.Is(err, tts.ErrSave) {
		msg := strings.TrimPrefix(err.Error(), tts.ErrSave.Error()+": ")
		return "Save error: " + probe.Truncate(msg, maxSynthesisError)
	}
	return "Synthesis error: " + probe.Truncate(transport.Message(err), maxSynthesisError)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type nopObserver struct{}

func (nopObserver) ProbeStarted(engine.Descriptor) {}
func (nopObserver) ProbeFinished(engine.Descriptor, result.Outcome) {}
func (nopObserver) EngineStarted(engine.Descriptor) {}
func (nopObserver) PhraseStarted(engine.Descriptor, string) {}
func (nopObserver) PhraseFinished(engine.Descriptor, result.PhraseResult) {}
func (nopObserver) EngineFinished(engine.Descriptor, result.EngineResult, int) {}
