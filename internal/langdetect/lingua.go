package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// IsEnglish reports whether the sample reads as English. Samples too short to
// classify are let through rather than dropped.
func IsEnglish(text string) bool {
	code := DetectISO6391(text)
	return code == "" || code == "en"
}

func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		// Headlines are short; a focused language set misclassifies them far
		// less than the full 75-language model.
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English,
				lingua.Spanish,
				lingua.French,
				lingua.German,
				lingua.Portuguese,
				lingua.Italian,
				lingua.Dutch,
			).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
