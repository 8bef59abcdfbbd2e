// Package config resolves, parses, validates, and defaults dictate configuration.
package config

// Config is the fully materialized runtime configuration used by dictate.
type Config struct {
	OutputMode string
	Audio      AudioConfig
	Paste      PasteConfig
	Models     ModelsConfig
	Transcript TranscriptConfig
	Overlay    OverlayConfig
	Clipboard  CommandConfig
	PasteCmd   CommandConfig
	Hotkey     HotkeyConfig
	Vocab      VocabConfig
	Debug      DebugConfig
}

// AudioConfig controls preferred/fallback input-source selection and capture rate.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
}

// PasteConfig controls post-commit paste behavior.
type PasteConfig struct {
	Enable   bool
	Shortcut string
}

// ModelsConfig controls ASR model resolution and storage.
type ModelsConfig struct {
	PreferredModel string
	StorageDir     string
}

// HotkeyConfig controls global-hotkey registration.
type HotkeyConfig struct {
	Shortcut       string
	CompositorHint string
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// OverlayConfig controls visual indicator, audio cue, and OSD placement behavior.
type OverlayConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	Position          string
	WindowDecorations bool
	Height            int
	TextRecording     string
	TextProcessing    string
	TextError         string
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to ASR adapters.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
