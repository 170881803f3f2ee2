// Package tts exercises end-to-end synthesis on the remote endpoint.
//
// A test sends one phrase to the unified synthesis procedure, fetches the
// produced artifact, validates it as a WAV file and keeps a copy of every
// artifact that passes.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/ttsprobe/internal/audio"
	"github.com/nadzzz/ttsprobe/internal/engine"
	"github.com/nadzzz/ttsprobe/internal/transport"
)

// SynthesisProcedure is the shared synthesis endpoint of the TTS app.
const SynthesisProcedure = "generate_unified_tts"

var (
	// ErrNoResult means the synthesis call returned nothing.
	ErrNoResult = errors.New("no result returned")

	// ErrNoAudioPath means the result carried no audio artifact.
	ErrNoAudioPath = errors.New("no audio path in result")

	// ErrSave means a valid artifact could not be copied into the output dir.
	ErrSave = errors.New("saving artifact")
)

// ValidationError means the artifact was produced but failed inspection.
type ValidationError struct {
	Report audio.Report
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Report.Summary()
}

// Request is a single synthesis call.
type Request struct {
	// Engine is the tts_engine value understood by the endpoint.
	Engine string

	// Text is the phrase to speak.
	Text string

	// AudioFormat is the container requested from the endpoint.
	AudioFormat string

	// Voice holds engine-specific keyword arguments.
	Voice map[string]any
}

// NewRequest builds a WAV request for the engine.
func NewRequest(d engine.Descriptor, text string) Request {
	return Request{
		Engine:      d.EngineName(),
		Text:        text,
		AudioFormat: "wav",
		Voice:       d.Voice,
	}
}

// Params returns the keyword arguments for the call. Only the mandatory
// fields and the voice selection are set; everything else keeps the
// endpoint's defaults.
func (r Request) Params() map[string]any {
	params := make(map[string]any, 3+len(r.Voice))
	for k, v := range r.Voice {
		params[k] = v
	}
	params["text_input"] = r.Text
	params["tts_engine"] = r.Engine
	params["audio_format"] = r.AudioFormat
	return params
}

// Outcome is the result of one synthesis test.
type Outcome struct {
	Passed    bool
	Report    *audio.Report
	SavedPath string
	Err       error
}

// Tester runs synthesis tests and stores passing artifacts in OutputDir.
type Tester struct {
	client    transport.Client
	outputDir string
}

// New creates a tester. The output directory must already exist.
func New(client transport.Client, outputDir string) *Tester {
	return &Tester{client: client, outputDir: outputDir}
}

// Test synthesizes text with the engine and validates the artifact.
// Failures are reported in the outcome; Test never panics or aborts the run.
func (t *Tester) Test(ctx context.Context, d engine.Descriptor, text string) Outcome {
	req := NewRequest(d, text)
	logger := slog.With("engine", d.ID, "text_length", len(text))

	start := time.Now()
	out, err := t.client.Predict(ctx, SynthesisProcedure, req.Params())
	if err != nil {
		logger.Debug("synthesis call failed", "error", err)
		return Outcome{Err: err}
	}
	logger.Debug("synthesis call returned", "outputs", len(out), "duration", time.Since(start))

	if len(out) == 0 {
		return Outcome{Err: ErrNoResult}
	}
	path := artifactPath(out[0])
	if path == "" {
		return Outcome{Err: ErrNoAudioPath}
	}

	report := audio.Validate(path)
	if !report.Valid {
		return Outcome{Report: &report, Err: &ValidationError{Report: report}}
	}

	dest := filepath.Join(t.outputDir, ArtifactName(req.Engine, text))
	if err := copyFile(path, dest); err != nil {
		return Outcome{Report: &report, Err: fmt.Errorf("%w: %w", ErrSave, err)}
	}

	logger.Debug("artifact saved", "path", dest, "duration_seconds", report.DurationSeconds)
	return Outcome{Passed: true, Report: &report, SavedPath: dest}
}

// artifactPath extracts a filesystem path from a synthesis output, which is
// either a plain path or an unresolved file object.
func artifactPath(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		p, _ := val["path"].(string)
		return p
	default:
		return ""
	}
}

// nameReplacer keeps artifact names to a single path element.
var nameReplacer = strings.NewReplacer(" ", "_", ".", "", "/", "_", "\\", "_")

// ArtifactName is the deterministic file name for an engine/phrase pair:
// the engine name and the first 30 characters of the text, with spaces and
// path separators replaced by underscores and periods dropped.
func ArtifactName(engineName, text string) string {
	r := []rune(text)
	if len(r) > 30 {
		r = r[:30]
	}
	return nameReplacer.Replace(engineName) + "_" + nameReplacer.Replace(string(r)) + ".wav"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
