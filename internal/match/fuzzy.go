package match

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"horse.fit/technus/internal/textnorm"
)

// DefaultFuzzyThreshold is the partial-ratio score (0-100) a keyword must
// beat to count as a lexical match against article text.
const DefaultFuzzyThreshold = 65

// Keywords returns the subset of candidates whose fuzzy partial-ratio score
// against the normalized text strictly exceeds the threshold.
func Keywords(candidates []string, text string, threshold int) []string {
	normalizedText := textnorm.Normalize(text)
	if normalizedText == "" {
		return nil
	}

	matched := make([]string, 0, len(candidates))
	for _, word := range candidates {
		normalizedWord := textnorm.Normalize(word)
		if normalizedWord == "" {
			continue
		}
		if fuzzy.PartialRatio(normalizedWord, normalizedText) > threshold {
			matched = append(matched, word)
		}
	}

	if len(matched) == 0 {
		return nil
	}
	return matched
}
