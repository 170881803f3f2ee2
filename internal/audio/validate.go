package audio

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

const (
	// MinSizeBytes is the smallest file worth opening as audio.
	MinSizeBytes = 100

	// MinDurationSeconds is the shortest clip still considered audible speech.
	MinDurationSeconds = 0.1
)

// AcceptedSampleRates are the rates TTS engines are expected to produce.
var AcceptedSampleRates = []int{16000, 22050, 24000, 44100, 48000}

// Report is the verdict on a single audio artifact.
type Report struct {
	Valid           bool     `json:"valid" yaml:"valid"`
	SizeBytes       int64    `json:"size_bytes" yaml:"size_bytes"`
	DurationSeconds float64  `json:"duration_seconds" yaml:"duration_seconds"`
	SampleRateHz    int      `json:"sample_rate_hz" yaml:"sample_rate_hz"`
	Channels        int      `json:"channels" yaml:"channels"`
	BitsPerSample   int      `json:"bits_per_sample,omitempty" yaml:"bits_per_sample,omitempty"`
	Errors          []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Summary joins the report errors for single-line display.
func (r Report) Summary() string {
	return strings.Join(r.Errors, ", ")
}

func (r *Report) fail(format string, args ...any) Report {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
	return *r
}

// Validate inspects the WAV file at path. Checks run in order and stop at the
// first failure. Every outcome, including I/O trouble, is expressed in the
// returned report.
func Validate(path string) Report {
	var r Report

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r.fail("File does not exist")
		}
		return r.fail("Error reading file: %v", err)
	}

	r.SizeBytes = info.Size()
	if r.SizeBytes < MinSizeBytes {
		return r.fail("File too small (%d bytes)", r.SizeBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return r.fail("Error reading file: %v", err)
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		if errors.Is(err, ErrFormat) {
			detail := strings.TrimPrefix(err.Error(), ErrFormat.Error()+": ")
			return r.fail("Invalid WAV: %s", detail)
		}
		return r.fail("Error reading file: %v", err)
	}

	r.SampleRateHz = h.SampleRate
	r.Channels = h.Channels
	r.BitsPerSample = h.BitsPerSample
	r.DurationSeconds = h.Duration()

	switch {
	case r.DurationSeconds < MinDurationSeconds:
		return r.fail("Duration too short (%.2fs)", r.DurationSeconds)
	case !slices.Contains(AcceptedSampleRates, r.SampleRateHz):
		return r.fail("Unusual sample rate (%d)", r.SampleRateHz)
	}

	r.Valid = true
	return r
}
