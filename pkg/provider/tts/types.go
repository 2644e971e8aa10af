package tts

// Voice identifies a synthesis voice.
type Voice struct {
	// ID is the provider-specific voice identifier. Empty selects the
	// provider's default voice.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider,omitempty"`

	// Speed adjusts the speaking rate (0.25 to 4.0, 1.0 = default). Zero
	// means default.
	Speed float64 `json:"speed,omitempty"`

	// Metadata holds provider-specific voice attributes (gender, accent, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}
