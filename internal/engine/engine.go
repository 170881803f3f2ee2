// Package engine holds the catalog of TTS engines the harness knows about.
//
// A single registry serves both the load check and the synthesis check.
// Which engines take part in each is decided by capability flags on the
// descriptor rather than by separate lists.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Lookup for an unknown engine.
var ErrNotFound = errors.New("engine not found")

// Capability selects the engines that take part in a harness mode.
type Capability int

const (
	// CapLoadCheck engines are probed by the load check.
	CapLoadCheck Capability = iota
	// CapReferenceFree engines can synthesize without reference audio.
	CapReferenceFree
)

// Descriptor identifies a TTS engine and how to exercise it.
type Descriptor struct {
	// ID is a stable short key, unique within the registry (e.g. "kokoro").
	ID string `mapstructure:"id" yaml:"id" json:"id"`

	// Name is the human-readable label. It is also the value passed as
	// tts_engine to the synthesis procedure unless SynthesisName is set.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// SynthesisName overrides Name for the synthesis procedure.
	SynthesisName string `mapstructure:"synthesis_name" yaml:"synthesis_name,omitempty" json:"synthesis_name,omitempty"`

	// LoadProcedure is the remote procedure that loads the engine's model.
	LoadProcedure string `mapstructure:"load_procedure" yaml:"load_procedure" json:"load_procedure"`

	// LoadArgs are named parameters for LoadProcedure. Nil means none.
	LoadArgs map[string]any `mapstructure:"load_args" yaml:"load_args,omitempty" json:"load_args,omitempty"`

	// Skip, when non-empty, explains why the engine cannot be probed by
	// this harness (e.g. it needs a local model path). Skipped engines are
	// never contacted.
	Skip string `mapstructure:"skip" yaml:"skip,omitempty" json:"skip,omitempty"`

	// RequiresReferenceAudio is informational.
	RequiresReferenceAudio bool `mapstructure:"requires_reference_audio" yaml:"requires_reference_audio" json:"requires_reference_audio"`

	// LoadCheck marks the engine for the load check.
	LoadCheck bool `mapstructure:"load_check" yaml:"load_check" json:"load_check"`

	// ReferenceFree marks the engine for the synthesis check.
	ReferenceFree bool `mapstructure:"reference_free" yaml:"reference_free" json:"reference_free"`

	// Voice holds engine-specific keyword arguments merged into the
	// synthesis call (e.g. kokoro_voice, kokoro_speed).
	Voice map[string]any `mapstructure:"voice" yaml:"voice,omitempty" json:"voice,omitempty"`
}

// Skipped reports whether the engine is excluded from remote probing.
func (d Descriptor) Skipped() bool { return d.Skip != "" }

// Has reports whether the descriptor carries the capability.
func (d Descriptor) Has(c Capability) bool {
	switch c {
	case CapLoadCheck:
		return d.LoadCheck
	case CapReferenceFree:
		return d.ReferenceFree
	default:
		return false
	}
}

// EngineName is the value sent as tts_engine on synthesis.
func (d Descriptor) EngineName() string {
	if d.SynthesisName != "" {
		return d.SynthesisName
	}
	return d.Name
}

// Registry is an immutable, ordered engine catalog.
type Registry struct {
	engines []Descriptor
	byKey   map[string]int
}

// New validates the descriptors and builds a registry preserving their order.
func New(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		engines: make([]Descriptor, 0, len(descs)),
		byKey:   make(map[string]int, 2*len(descs)),
	}
	ids := make(map[string]bool, len(descs))

	for i, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("engine #%d: empty id", i)
		}
		if ids[d.ID] {
			return nil, fmt.Errorf("engine %q: duplicate id", d.ID)
		}
		ids[d.ID] = true
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.LoadProcedure == "" && !d.Skipped() {
			return nil, fmt.Errorf("engine %q: load_procedure is required unless skip is set", d.ID)
		}
		if d.ReferenceFree && d.RequiresReferenceAudio {
			return nil, fmt.Errorf("engine %q: reference_free conflicts with requires_reference_audio", d.ID)
		}

		r.engines = append(r.engines, d)
		r.byKey[strings.ToLower(d.ID)] = len(r.engines) - 1
		if _, taken := r.byKey[strings.ToLower(d.Name)]; !taken {
			r.byKey[strings.ToLower(d.Name)] = len(r.engines) - 1
		}
	}
	return r, nil
}

// Lookup finds an engine by id or display name, ignoring case.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	i, ok := r.byKey[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.engines[i], nil
}

// All returns every engine in declaration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.engines))
	copy(out, r.engines)
	return out
}

// Filter returns the engines carrying the capability, in declaration order.
func (r *Registry) Filter(c Capability) []Descriptor {
	var out []Descriptor
	for _, d := range r.engines {
		if d.Has(c) {
			out = append(out, d)
		}
	}
	return out
}

// Names returns the display names of the given descriptors.
func Names(descs []Descriptor) []string {
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}
