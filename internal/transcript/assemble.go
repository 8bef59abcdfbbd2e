// Package transcript assembles and normalizes recognized ASR segments.
package transcript

import "strings"

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool

	// VocabPhrases are the canonically-cased phrases from this session's
	// enabled vocab sets (config.BuildSpeechPhrases), reapplied after
	// sentence capitalization so a configured spelling like "Hyprland" or
	// "dictate" survives the engine's own casing.
	VocabPhrases []string
}

// Assemble joins final ASR segments and applies configured normalization.
func Assemble(finalSegments []string, opts Options) string {
	if len(finalSegments) == 0 {
		return ""
	}

	joined := strings.Join(finalSegments, " ")
	normalized := strings.Join(strings.Fields(joined), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}

	normalized = applyVocabCasing(normalized, opts.VocabPhrases)

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

func capitalizeSentences(text string) string {
	text = capitalizeSentenceStarts(text)
	text = pronounIContractionPattern.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
	return capitalizeStandalonePronounI(text)
}
