package overlay

import (
	"os"
	"strings"
)

type locale string

const localeEnglish locale = "en"

type textSet struct {
	recording  string
	processing string
	errorText  string
}

func textSetFromEnv() textSet {
	return textSetForLocale(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func textSetForLocale(tag locale) textSet {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return textSet{
			recording:  "Recording…",
			processing: "Transcribing…",
			errorText:  "Speech recognition error",
		}
	}
}
