package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func probed(o Outcome) EngineResult { return EngineResult{Probe: &o} }

func TestEngineResult_Succeeded(t *testing.T) {
	tests := []struct {
		name string
		er   EngineResult
		want bool
	}{
		{"loaded", probed(Loaded()), true},
		{"needs download", probed(NeedsDownload()), false},
		{"failed", probed(Failed("x")), false},
		{"skipped", probed(Skipped("y")), false},
		{"no phrases", EngineResult{}, false},
		{"all phrases", EngineResult{Phrases: []PhraseResult{{Passed: true}, {Passed: true}}}, true},
		{"one phrase failed", EngineResult{Phrases: []PhraseResult{{Passed: true}, {}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.er.Succeeded())
		})
	}
}

func TestRun_Counts(t *testing.T) {
	var run Run
	for _, o := range []Outcome{Loaded(), Failed("a"), Skipped("b"), Loaded(), NeedsDownload()} {
		run.Add(probed(o))
	}

	assert.Equal(t, 2, run.Count(KindLoaded))
	assert.Equal(t, 1, run.Count(KindSkipped))
	assert.Equal(t, 4, run.Tested())
	assert.Equal(t, 2, run.Succeeded())
	assert.Len(t, run.WithKind(KindFailed), 1)
	assert.Empty(t, (&Run{}).WithKind(KindLoaded))
}
