package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/ttsprobe/internal/audio"
	"github.com/nadzzz/ttsprobe/internal/engine"
	"github.com/nadzzz/ttsprobe/internal/result"
	"github.com/nadzzz/ttsprobe/internal/transport"
	"github.com/nadzzz/ttsprobe/internal/tts"
)

// routedClient answers each procedure (or engine/phrase for synthesis)
// from a table and records the call order.
type routedClient struct {
	load   map[string]func() ([]any, error)
	synth  func(engine, text string) ([]any, error)
	calls  []string
	active int
	maxIn  int
}

func (c *routedClient) Predict(_ context.Context, procedure string, params map[string]any) ([]any, error) {
	c.active++
	defer func() { c.active-- }()
	if c.active > c.maxIn {
		c.maxIn = c.active
	}
	c.calls = append(c.calls, procedure)

	if procedure == tts.SynthesisProcedure {
		return c.synth(params["tts_engine"].(string), params["text_input"].(string))
	}
	if f, ok := c.load[procedure]; ok {
		return f()
	}
	return nil, &transport.CallError{Procedure: procedure, Err: errors.New("cannot find a function")}
}

func (c *routedClient) Close() error { return nil }

func status(s string) func() ([]any, error) {
	return func() ([]any, error) { return []any{s}, nil }
}

type recorder struct {
	nopObserver
	probed []string
	phrase []string
}

func (r *recorder) ProbeFinished(d engine.Descriptor, _ result.Outcome) { r.probed = append(r.probed, d.ID) }
func (r *recorder) PhraseFinished(d engine.Descriptor, pr result.PhraseResult) {
	r.phrase = append(r.phrase, d.ID+":"+pr.Text)
}

func TestRunLoadCheck(t *testing.T) {
	c := &routedClient{load: map[string]func() ([]any, error){
		"handle_load_kitten": status("✅ KittenTTS loaded"),
		"handle_load_kokoro": status("Model needs download"),
		"handle_f5_load":     status("Ready"),
		"handle_load_fish":   status("❌ missing checkpoint"),
		"handle_load_higgs":  func() ([]any, error) { return nil, errors.New("timeout awaiting response headers") },
		"handle_load_voxcpm": func() ([]any, error) { return []any{}, nil },
		"handle_vibevoice_load": func() ([]any, error) {
			t.Fatal("skipped engine must not be called")
			return nil, nil
		},
	}}
	rec := &recorder{}
	h := New(engine.Default(), c, Options{Target: "http://tts:7860/", Observer: rec})

	run := h.RunLoadCheck(context.Background())

	require.Len(t, run.Engines, 11)
	assert.Equal(t, result.ModeLoad, run.Mode)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "http://tts:7860/", run.Target)
	assert.Equal(t, 1, c.maxIn)

	ids := make([]string, len(run.Engines))
	for i, e := range run.Engines {
		ids[i] = e.EngineID
	}
	assert.Equal(t, ids, rec.probed)
	assert.Equal(t, "kitten_tts", ids[0])
	assert.Equal(t, "vibevoice", ids[10])
	assert.NotContains(t, c.calls, "handle_vibevoice_load")
	assert.Len(t, c.calls, 10)

	assert.Equal(t, 2, run.Count(result.KindLoaded))
	assert.Equal(t, 1, run.Count(result.KindNeedsDownload))
	assert.Equal(t, 1, run.Count(result.KindSkipped))
	assert.Equal(t, 7, run.Count(result.KindFailed))
	assert.Equal(t, 10, run.Tested())

	assert.Equal(t, result.Failed("missing checkpoint"), *run.Engines[5].Probe)
	assert.Equal(t, result.Failed("timeout awaiting response headers"), *run.Engines[8].Probe)
	assert.Equal(t, result.Failed("Failed"), *run.Engines[9].Probe)
}

func TestSelectSynthesisEngines(t *testing.T) {
	h := New(engine.Default(), &routedClient{}, Options{})

	all, err := h.SelectSynthesisEngines("", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"KittenTTS", "Kokoro TTS"}, engine.Names(all))

	one, err := h.SelectSynthesisEngines("Kokoro TTS", false)
	require.NoError(t, err)
	assert.Equal(t, "kokoro", one[0].ID)

	_, err = h.SelectSynthesisEngines("F5-TTS", false)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "needs reference audio")

	_, err = h.SelectSynthesisEngines("espeak", false)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "KittenTTS, Kokoro TTS")
}

func TestRunSynthesis_AllPhrasesMustPass(t *testing.T) {
	good := filepath.Join(t.TempDir(), "good.wav")
	require.NoError(t, os.WriteFile(good, audio.Silence(24000, 0.5), 0o644))

	c := &routedClient{synth: func(eng, text string) ([]any, error) {
		switch {
		case eng == "KittenTTS":
			return []any{good}, nil
		case text == "Hello from PMOVES.":
			return nil, errors.New("kokoro pipeline crashed")
		default:
			return []any{good}, nil
		}
	}}
	rec := &recorder{}
	outDir := t.TempDir()
	h := New(engine.Default(), c, Options{OutputDir: outDir, Observer: rec})

	engines, err := h.SelectSynthesisEngines("", true)
	require.NoError(t, err)
	run := h.RunSynthesis(context.Background(), engines)

	require.Len(t, run.Engines, 2)
	assert.Equal(t, outDir, run.OutputDir)
	assert.Len(t, c.calls, 4)
	assert.Equal(t, 1, c.maxIn)
	assert.Equal(t, []string{
		"kitten_tts:Hello from PMOVES.", "kitten_tts:Audio test complete.",
		"kokoro:Hello from PMOVES.", "kokoro:Audio test complete.",
	}, rec.phrase)

	kitten, kokoro := run.Engines[0], run.Engines[1]
	assert.True(t, kitten.Succeeded())
	assert.Equal(t, 2, kitten.PassedPhrases())

	assert.False(t, kokoro.Succeeded())
	assert.Equal(t, 1, kokoro.PassedPhrases())
	assert.Equal(t, "Synthesis error: kokoro pipeline crashed", kokoro.Phrases[0].Error)
	assert.True(t, kokoro.Phrases[1].Passed)

	assert.Equal(t, 1, run.Succeeded())

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.FileExists(t, filepath.Join(outDir, "Kokoro_TTS_Audio_test_complete.wav"))
}

func TestRunSynthesis_CustomPhrases(t *testing.T) {
	c := &routedClient{synth: func(string, string) ([]any, error) { return []any{""}, nil }}
	h := New(engine.Default(), c, Options{OutputDir: t.TempDir(), Phrases: []string{"one"}})

	engines, _ := h.SelectSynthesisEngines("kitten_tts", false)
	run := h.RunSynthesis(context.Background(), engines)

	require.Len(t, run.Engines[0].Phrases, 1)
	assert.Equal(t, "No audio path in result", run.Engines[0].Phrases[0].Error)
}

func TestErrorText(t *testing.T) {
	verr := &tts.ValidationError{Report: audio.Report{Errors: []string{"File too small (12 bytes)"}}}
	assert.Equal(t, "Validation failed: File too small (12 bytes)", errorText(verr))
	assert.Equal(t, "No result returned", errorText(tts.ErrNoResult))

	save := fmt.Errorf("%w: %w", tts.ErrSave, errors.New("open /out/x.wav: read-only file system"))
	assert.Equal(t, "Save error: open /out/x.wav: read-only file system", errorText(save))

	long := errors.New("a very long remote failure message that keeps going well past sixty characters")
	assert.Len(t, errorText(&transport.CallError{Procedure: "/x", Err: long}), len("Synthesis error: ")+60)
}

func skippedRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	reg, err := engine.New([]engine.Descriptor{
		{ID: "kitten_tts", Name: "KittenTTS", LoadProcedure: "handle_load_kitten", ReferenceFree: true},
		{ID: "k", Name: "K", Skip: "needs setup", ReferenceFree: true},
	})
	require.NoError(t, err)
	return reg
}

func TestSelectEngines_ExcludesSkipped(t *testing.T) {
	reg := skippedRegistry(t)

	all, err := SelectEngines(reg, "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"KittenTTS"}, engine.Names(all))

	_, err = SelectEngines(reg, "K", false)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "is skipped: needs setup")
}

func TestRunSynthesis_SkippedEngineNotContacted(t *testing.T) {
	reg := skippedRegistry(t)
	k, err := reg.Lookup("k")
	require.NoError(t, err)

	c := &routedClient{synth: func(string, string) ([]any, error) {
		t.Fatal("skipped engine must not be called")
		return nil, nil
	}}
	run := New(reg, c, Options{OutputDir: t.TempDir()}).RunSynthesis(context.Background(), []engine.Descriptor{k})

	assert.Empty(t, c.calls)
	require.Len(t, run.Engines, 1)
	assert.Equal(t, result.Skipped("needs setup"), *run.Engines[0].Probe)
	assert.Zero(t, run.Tested())
}
