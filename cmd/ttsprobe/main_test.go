package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nadzzz/ttsprobe/internal/audio"
	"github.com/nadzzz/ttsprobe/internal/result"
)

const testEngines = `
engines:
  - id: kitten_tts
    name: KittenTTS
    load_procedure: handle_load_kitten
    load_check: true
    reference_free: true
    voice:
      kitten_voice: expr-voice-2-f
  - id: fish
    name: Fish Speech
    load_procedure: handle_load_fish
    load_check: true
    requires_reference_audio: true
`

// ttsServer is a Gradio 5 app with two load handlers and the unified
// synthesis endpoint, which always returns a half second of silence.
func ttsServer(t *testing.T) *httptest.Server {
	t.Helper()
	wav := audio.Silence(24000, 0.5)
	info := map[string]any{"named_endpoints": map[string]any{
		"/handle_load_kitten": map[string]any{"parameters": []any{}},
		"/handle_load_fish":   map[string]any{"parameters": []any{}},
		"/generate_unified_tts": map[string]any{"parameters": []any{
			map[string]any{"parameter_name": "text_input"},
			map[string]any{"parameter_name": "tts_engine"},
			map[string]any{"parameter_name": "audio_format"},
			map[string]any{"parameter_name": "kitten_voice", "parameter_has_default": true, "parameter_default": "expr-voice-2-m"},
		}},
	}}
	results := map[string]string{
		"handle_load_kitten":   `["✅ KittenTTS loaded"]`,
		"handle_load_fish":     `["❌ checkpoint missing"]`,
		"generate_unified_tts": `[{"path": "/tmp/gradio/out.wav", "meta": {"_type": "gradio.FileData"}}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gradio_api/info", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(info)
	})
	mux.HandleFunc("/gradio_api/file=/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write(wav)
	})
	mux.HandleFunc("/gradio_api/call/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/gradio_api/call/"), "/")
		switch {
		case r.Method == http.MethodPost && len(parts) == 1 && parts[0] != "":
			fmt.Fprintf(w, `{"event_id": "evt-%s"}`, parts[0])
		case r.Method == http.MethodGet && len(parts) == 2 && parts[0] != "" && parts[1] != "":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "event: complete\ndata: %s\n\n", results[parts[0]])
		default:
			http.NotFound(w, r)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupRun(t *testing.T) string {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	chdirTo(t, dir)
	t.Setenv("HOME", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttsprobe.yaml"), []byte(testEngines), 0o644))
	return dir
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 0, run([]string{"version"}, &out, &out))
	assert.Equal(t, "ttsprobe dev\n", out.String())
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"serve"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "serve"`)

	assert.Equal(t, 2, run(nil, &stdout, &stderr))
}

func TestRun_Load(t *testing.T) {
	dir := setupRun(t)
	srv := ttsServer(t)
	reportPath := filepath.Join(dir, "load.yaml")

	var stdout, stderr bytes.Buffer
	code := run([]string{"load", "--url", srv.URL, "--log-level", "error", "--report", reportPath}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "Target: "+srv.URL+"/\n")
	assert.Contains(t, out, "Connected successfully\n")
	assert.Contains(t, out, "  KittenTTS... ✓ Loaded\n")
	assert.Contains(t, out, "  Fish Speech... ❌ checkpoint missing\n")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var rep result.Run
	require.NoError(t, yaml.Unmarshal(data, &rep))
	assert.Equal(t, result.ModeLoad, rep.Mode)
	assert.Len(t, rep.Engines, 2)
}

func TestRun_LoadConnectionFailure(t *testing.T) {
	setupRun(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"load", "--url", srv.URL, "--log-level", "error"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "ERROR: Failed to connect: ")
	assert.NotContains(t, stdout.String(), "Loading TTS Models")
}

func TestRun_Synth(t *testing.T) {
	dir := setupRun(t)
	srv := ttsServer(t)
	outDir := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := run([]string{"synth", "--url", srv.URL, "--all", "--output", outDir, "--log-level", "error"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Passed: 1/1\n")
	assert.FileExists(t, filepath.Join(outDir, "KittenTTS_Hello_from_PMOVES.wav"))
	assert.FileExists(t, filepath.Join(outDir, "KittenTTS_Audio_test_complete.wav"))
}

func TestRun_SynthRejectsReferenceEngineBeforeConnecting(t *testing.T) {
	setupRun(t)
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	code := run([]string{"synth", "--url", srv.URL, "--engine", "Fish Speech", "--log-level", "error"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "needs reference audio")
	assert.NotContains(t, stdout.String(), "Connecting")
	assert.Zero(t, hits)
}

// chdirTo changes the working directory for the duration of the test.
func chdirTo(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
