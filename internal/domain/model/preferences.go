package model

// Preferences holds per-conversation voice settings mutated by the command
// fast path. An empty STTLanguage means auto-detect.
type Preferences struct {
	TTSEnabled  bool   `json:"tts_enabled"`
	TTSLanguage string `json:"tts_language"`
	STTLanguage string `json:"stt_language,omitempty"`
}

func DefaultPreferences() *Preferences {
	return &Preferences{TTSEnabled: false, TTSLanguage: "en"}
}
