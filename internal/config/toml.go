package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// document mirrors the on-disk TOML settings file shape.
type document struct {
	OutputMode          string `toml:"output_mode"`
	AudioDevice         string `toml:"audio_device"`
	AudioFallbackDevice string `toml:"audio_fallback_device"`
	SampleRate          int    `toml:"sample_rate"`
	PreferredModel      string `toml:"preferred_model"`
	ModelStorageDir     string `toml:"model_storage_dir"`
	Shortcut            string `toml:"shortcut"`
	CompositorHint      string `toml:"compositor_hint"`
	OSDPosition         string `toml:"osd_position"`
	WindowDecorations   bool   `toml:"window_decorations"`

	Paste struct {
		Enable   bool   `toml:"enable"`
		Shortcut string `toml:"shortcut"`
		Command  string `toml:"command"`
	} `toml:"paste"`

	Clipboard struct {
		Command string `toml:"command"`
	} `toml:"clipboard"`

	Transcript struct {
		TrailingSpace       bool `toml:"trailing_space"`
		CapitalizeSentences bool `toml:"capitalize_sentences"`
	} `toml:"transcript"`

	Overlay struct {
		Enable            bool   `toml:"enable"`
		Backend           string `toml:"backend"`
		DesktopAppName    string `toml:"desktop_app_name"`
		SoundEnable       bool   `toml:"sound_enable"`
		SoundStartFile    string `toml:"sound_start_file"`
		SoundStopFile     string `toml:"sound_stop_file"`
		SoundCompleteFile string `toml:"sound_complete_file"`
		SoundCancelFile   string `toml:"sound_cancel_file"`
		Height            int    `toml:"height"`
		TextRecording     string `toml:"text_recording"`
		TextProcessing    string `toml:"text_processing"`
		TextError         string `toml:"text_error"`
		ErrorTimeoutMS    int    `toml:"error_timeout_ms"`
	} `toml:"overlay"`

	Vocab struct {
		Global     []string            `toml:"global"`
		MaxPhrases int                 `toml:"max_phrases"`
		Sets       map[string]vocabDoc `toml:"sets"`
	} `toml:"vocab"`

	Debug struct {
		AudioDump bool `toml:"audio_dump"`
	} `toml:"debug"`
}

type vocabDoc struct {
	Boost   float64  `toml:"boost"`
	Phrases []string `toml:"phrases"`
}

// Parse decodes TOML content on top of a base configuration, returning non-fatal warnings.
func Parse(content string, base Config) (Config, []Warning, error) {
	var doc document
	meta, err := toml.Decode(content, &doc)
	if err != nil {
		return Config{}, nil, fmt.Errorf("decode toml: %w", err)
	}

	cfg := base

	if strings.TrimSpace(doc.OutputMode) != "" {
		cfg.OutputMode = doc.OutputMode
	}
	if strings.TrimSpace(doc.AudioDevice) != "" {
		cfg.Audio.Input = doc.AudioDevice
	}
	if strings.TrimSpace(doc.AudioFallbackDevice) != "" {
		cfg.Audio.Fallback = doc.AudioFallbackDevice
	}
	if doc.SampleRate != 0 {
		cfg.Audio.SampleRate = doc.SampleRate
	}
	if strings.TrimSpace(doc.PreferredModel) != "" {
		cfg.Models.PreferredModel = doc.PreferredModel
	}
	if strings.TrimSpace(doc.ModelStorageDir) != "" {
		cfg.Models.StorageDir = doc.ModelStorageDir
	}
	if strings.TrimSpace(doc.Shortcut) != "" {
		cfg.Hotkey.Shortcut = doc.Shortcut
	}
	if strings.TrimSpace(doc.CompositorHint) != "" {
		cfg.Hotkey.CompositorHint = doc.CompositorHint
	}
	if strings.TrimSpace(doc.OSDPosition) != "" {
		cfg.Overlay.Position = doc.OSDPosition
	}
	cfg.Overlay.WindowDecorations = doc.WindowDecorations

	if meta.IsDefined("paste", "enable") {
		cfg.Paste.Enable = doc.Paste.Enable
	}
	if strings.TrimSpace(doc.Paste.Shortcut) != "" {
		cfg.Paste.Shortcut = doc.Paste.Shortcut
	}
	if strings.TrimSpace(doc.Paste.Command) != "" {
		argv, argvErr := parseArgv(doc.Paste.Command)
		if argvErr != nil {
			return Config{}, nil, fmt.Errorf("paste.command: %w", argvErr)
		}
		cfg.PasteCmd = CommandConfig{Raw: doc.Paste.Command, Argv: argv}
	}

	if strings.TrimSpace(doc.Clipboard.Command) != "" {
		argv, argvErr := parseArgv(doc.Clipboard.Command)
		if argvErr != nil {
			return Config{}, nil, fmt.Errorf("clipboard.command: %w", argvErr)
		}
		cfg.Clipboard = CommandConfig{Raw: doc.Clipboard.Command, Argv: argv}
	}

	if meta.IsDefined("transcript", "trailing_space") {
		cfg.Transcript.TrailingSpace = doc.Transcript.TrailingSpace
	}
	if meta.IsDefined("transcript", "capitalize_sentences") {
		cfg.Transcript.CapitalizeSentences = doc.Transcript.CapitalizeSentences
	}

	if meta.IsDefined("overlay", "enable") {
		cfg.Overlay.Enable = doc.Overlay.Enable
	}
	if strings.TrimSpace(doc.Overlay.Backend) != "" {
		cfg.Overlay.Backend = doc.Overlay.Backend
	}
	if strings.TrimSpace(doc.Overlay.DesktopAppName) != "" {
		cfg.Overlay.DesktopAppName = doc.Overlay.DesktopAppName
	}
	if meta.IsDefined("overlay", "sound_enable") {
		cfg.Overlay.SoundEnable = doc.Overlay.SoundEnable
	}
	cfg.Overlay.SoundStartFile = doc.Overlay.SoundStartFile
	cfg.Overlay.SoundStopFile = doc.Overlay.SoundStopFile
	cfg.Overlay.SoundCompleteFile = doc.Overlay.SoundCompleteFile
	cfg.Overlay.SoundCancelFile = doc.Overlay.SoundCancelFile
	if doc.Overlay.Height != 0 {
		cfg.Overlay.Height = doc.Overlay.Height
	}
	if strings.TrimSpace(doc.Overlay.TextRecording) != "" {
		cfg.Overlay.TextRecording = doc.Overlay.TextRecording
	}
	if strings.TrimSpace(doc.Overlay.TextProcessing) != "" {
		cfg.Overlay.TextProcessing = doc.Overlay.TextProcessing
	}
	if strings.TrimSpace(doc.Overlay.TextError) != "" {
		cfg.Overlay.TextError = doc.Overlay.TextError
	}
	if doc.Overlay.ErrorTimeoutMS != 0 {
		cfg.Overlay.ErrorTimeoutMS = doc.Overlay.ErrorTimeoutMS
	}

	if len(doc.Vocab.Global) > 0 {
		cfg.Vocab.GlobalSets = doc.Vocab.Global
	}
	if doc.Vocab.MaxPhrases != 0 {
		cfg.Vocab.MaxPhrases = doc.Vocab.MaxPhrases
	}
	if len(doc.Vocab.Sets) > 0 {
		sets := make(map[string]VocabSet, len(doc.Vocab.Sets))
		for name, set := range doc.Vocab.Sets {
			sets[name] = VocabSet{Name: name, Boost: set.Boost, Phrases: set.Phrases}
		}
		cfg.Vocab.Sets = sets
	}

	if meta.IsDefined("debug", "audio_dump") {
		cfg.Debug.EnableAudioDump = doc.Debug.AudioDump
	}

	warnings := make([]Warning, 0)
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("unknown config key %q ignored", key.String())})
	}

	return cfg, warnings, nil
}
