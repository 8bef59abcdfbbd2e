package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		OutputMode: "clipboard",
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
		},
		Paste: PasteConfig{Enable: true, Shortcut: "CTRL,V"},
		Models: ModelsConfig{
			PreferredModel: "parakeet:v3",
		},
		Transcript: TranscriptConfig{
			TrailingSpace:       true,
			CapitalizeSentences: true,
		},
		Overlay: OverlayConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "dictate-overlay",
			SoundEnable:    true,
			Position:       "bottom-center",
			Height:         28,
			ErrorTimeoutMS: 1600,
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Hotkey: HotkeyConfig{
			Shortcut: "SUPER,Z",
		},
		Vocab: VocabConfig{
			GlobalSets: nil,
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Debug: DebugConfig{},
	}
}
