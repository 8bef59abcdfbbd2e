package transcript

import (
	"regexp"
	"sort"
	"strings"
)

// applyVocabCasing rewrites case-insensitive occurrences of configured
// vocabulary phrases to their canonical casing. ASR output drifts to the
// engine's default casing even for a phrase that was supplied as a decoding
// bias hint, so this runs as the final normalization pass after sentence
// capitalization.
func applyVocabCasing(text string, phrases []string) string {
	if text == "" || len(phrases) == 0 {
		return text
	}

	seen := make(map[string]struct{}, len(phrases))
	ordered := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		key := strings.ToLower(phrase)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, phrase)
	}

	// Longest phrase first so a multi-word phrase is not shadowed by a
	// single word it contains.
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	for _, phrase := range ordered {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			continue
		}
		text = pattern.ReplaceAllString(text, phrase)
	}
	return text
}
