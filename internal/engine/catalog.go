package engine

// defaultEngines is the built-in catalog of engines served by the TTS UI.
// Order matters: it is the order of probing and of the report.
var defaultEngines = []Descriptor{
	{
		ID: "kitten_tts", Name: "KittenTTS", LoadProcedure: "handle_load_kitten",
		LoadCheck: true, ReferenceFree: true,
		Voice: map[string]any{"kitten_voice": "expr-voice-2-f"},
	},
	{
		ID: "kokoro", Name: "Kokoro TTS", LoadProcedure: "handle_load_kokoro",
		LoadCheck: true, ReferenceFree: true,
		Voice: map[string]any{"kokoro_voice": "af_heart", "kokoro_speed": 1.0},
	},
	{
		ID: "f5_tts", Name: "F5-TTS", LoadProcedure: "handle_f5_load",
		LoadArgs:  map[string]any{"model_name": "F5-TTS Base"},
		LoadCheck: true, RequiresReferenceAudio: true,
	},
	{ID: "indextts", Name: "IndexTTS", LoadProcedure: "handle_load_indextts", LoadCheck: true, RequiresReferenceAudio: true},
	{ID: "indextts2", Name: "IndexTTS2", LoadProcedure: "handle_load_indextts2", LoadCheck: true, RequiresReferenceAudio: true},
	{ID: "fish", Name: "Fish Speech", LoadProcedure: "handle_load_fish", LoadCheck: true, RequiresReferenceAudio: true},
	{ID: "chatterbox", Name: "ChatterboxTTS", LoadProcedure: "handle_load_chatterbox", LoadCheck: true, RequiresReferenceAudio: true},
	{ID: "chatterbox_mtl", Name: "Chatterbox Multilingual", LoadProcedure: "handle_load_chatterbox_multilingual", LoadCheck: true, RequiresReferenceAudio: true},
	{ID: "higgs", Name: "Higgs Audio", LoadProcedure: "handle_load_higgs", LoadCheck: true, RequiresReferenceAudio: true},
	{ID: "voxcpm", Name: "VoxCPM", LoadProcedure: "handle_load_voxcpm", LoadCheck: true, RequiresReferenceAudio: true},
	{
		ID: "vibevoice", Name: "VibeVoice", LoadProcedure: "handle_vibevoice_load",
		Skip:      "requires model path",
		LoadCheck: true, RequiresReferenceAudio: true,
	},
}

// Default returns a registry over the built-in catalog.
func Default() *Registry {
	r, err := New(DefaultDescriptors())
	if err != nil {
		panic("engine: invalid built-in catalog: " + err.Error())
	}
	return r
}

// DefaultDescriptors returns a deep copy of the built-in catalog.
func DefaultDescriptors() []Descriptor {
	out := make([]Descriptor, len(defaultEngines))
	for i, d := range defaultEngines {
		d.LoadArgs = cloneMap(d.LoadArgs)
		d.Voice = cloneMap(d.Voice)
		out[i] = d
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
