package keywords

import (
	"strings"

	"github.com/rs/zerolog"
)

// Separator joins batch keywords into one upstream query string.
const Separator = " OR "

// BatchByLength partitions keywords into batches whose joined length
// (including the " OR " separators) never exceeds maxChars. Keywords longer
// than maxChars on their own are skipped and logged, never emitted. Every
// remaining keyword lands in exactly one batch; the final partial batch is
// always emitted.
func BatchByLength(keys []string, maxChars int, logger zerolog.Logger) [][]string {
	if maxChars <= 0 {
		return nil
	}

	batches := make([][]string, 0, len(keys))
	batch := make([]string, 0, 8)
	totalLen := 0

	for _, word := range keys {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if len(word) > maxChars {
			logger.Warn().Str("keyword", word).Int("max_chars", maxChars).Msg("keyword exceeds query limit, skipped")
			continue
		}

		addedLen := len(word)
		if len(batch) > 0 {
			addedLen += len(Separator)
		}

		if totalLen+addedLen > maxChars {
			if len(batch) > 0 {
				batches = append(batches, batch)
			}
			batch = []string{word}
			totalLen = len(word)
			continue
		}

		batch = append(batch, word)
		totalLen += addedLen
	}

	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

// BatchByCount partitions entries into batches of at most size elements.
func BatchByCount[T any](entries []T, size int) [][]T {
	if size <= 0 || len(entries) == 0 {
		return nil
	}

	batches := make([][]T, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		batches = append(batches, entries[start:end])
	}
	return batches
}

// JoinQuery renders a batch into the OR-joined upstream query string.
func JoinQuery(batch []string) string {
	return strings.Join(batch, Separator)
}
