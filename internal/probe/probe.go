// Package probe checks whether TTS engines load on the remote endpoint.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/ttsprobe/internal/engine"
	"github.com/nadzzz/ttsprobe/internal/result"
	"github.com/nadzzz/ttsprobe/internal/transport"
)

// maxMessage bounds failure messages shown next to an engine name.
const maxMessage = 40

const (
	successGlyph = "✅"
	failureGlyph = "❌"
)

// Prober issues load calls. It holds no state between probes.
type Prober struct {
	client transport.Client
}

// New creates a prober that calls through client.
func New(client transport.Client) *Prober {
	return &Prober{client: client}
}

// Probe loads one engine and classifies the outcome. It never retries and
// never returns an error: remote failures become result.Failed.
func (p *Prober) Probe(ctx context.Context, d engine.Descriptor) result.Outcome {
	if d.Skipped() {
		return result.Skipped(d.Skip)
	}

	logger := slog.With("engine", d.ID, "procedure", d.LoadProcedure)
	logger.Debug("probing engine", "args", len(d.LoadArgs))

	out, err := p.client.Predict(ctx, d.LoadProcedure, d.LoadArgs)
	if err != nil {
		logger.Debug("load call failed", "error", err)
		return result.Failed(Truncate(transport.Message(err), maxMessage))
	}
	if len(out) == 0 {
		return result.Failed("Failed")
	}

	outcome := Classify(out[0])
	logger.Debug("load call classified", "kind", outcome.Kind)
	return outcome
}

// Classify maps the first output of a load call to an outcome. A structured
// status object is preferred; free text is matched as a fallback for apps
// that only return a human-readable message.
func Classify(v any) result.Outcome {
	if m, ok := v.(map[string]any); ok {
		if o, ok := classifyStructured(m); ok {
			return o
		}
	}
	return ClassifyText(toText(v))
}

// ClassifyText applies case-insensitive substring rules to a status message.
func ClassifyText(status string) result.Outcome {
	lower := strings.ToLower(status)
	switch {
	case strings.Contains(status, successGlyph),
		strings.Contains(lower, "loaded"),
		strings.Contains(lower, "ready"):
		return result.Loaded()
	case strings.Contains(lower, "download"):
		return result.NeedsDownload()
	}

	msg := Truncate(strings.TrimSpace(strings.ReplaceAll(status, failureGlyph, "")), maxMessage)
	if msg == "" {
		msg = "Failed"
	}
	return result.Failed(msg)
}

// classifyStructured reads {"status": "...", "message": "..."} (or "code").
func classifyStructured(m map[string]any) (result.Outcome, bool) {
	raw, ok := m["status"]
	if !ok {
		raw, ok = m["code"]
	}
	code, isString := raw.(string)
	if !ok || !isString {
		return result.Outcome{}, false
	}
	msg, _ := m["message"].(string)

	switch strings.ToLower(strings.TrimSpace(code)) {
	case "loaded", "ready", "ok", "success":
		return result.Loaded(), true
	case "needs_download", "download", "not_downloaded":
		return result.NeedsDownload(), true
	default:
		if msg == "" {
			msg = code
		}
		return result.Failed(Truncate(strings.TrimSpace(msg), maxMessage)), true
	}
}

func toText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
