package embedding

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/technus/internal/keywords"
	"horse.fit/technus/internal/textnorm"
)

const (
	DefaultSemanticThreshold = 0.92
	DefaultBatchSize         = 80
	DefaultRetryBackoff      = 15 * time.Second

	// Randomized pause after each successful provider call, to stay under
	// rate limits when many uncached keywords arrive at once.
	minBatchDelay = 1500 * time.Millisecond
	maxBatchDelay = 3 * time.Second
)

// MatcherOptions tunes semantic matching behavior.
type MatcherOptions struct {
	Threshold    float64
	BatchSize    int
	RetryBackoff time.Duration
}

// Matcher decides which user keywords are semantically close to article
// keywords, backed by a persistent vector cache and an external embedder.
type Matcher struct {
	cache   *Cache
	client  Embedder
	opts    MatcherOptions
	logger  zerolog.Logger
	delayFn func() time.Duration
}

func NewMatcher(cache *Cache, client Embedder, opts MatcherOptions, logger zerolog.Logger) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSemanticThreshold
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Matcher{
		cache:   cache,
		client:  client,
		opts:    opts,
		logger:  logger,
		delayFn: randomBatchDelay,
	}
}

// SemanticMatches returns the subset of userKW with cosine similarity >=
// threshold to at least one articleKW. Embedding failures degrade to fewer or
// no matches; they never surface as an error.
func (m *Matcher) SemanticMatches(ctx context.Context, userKW, articleKW []string) []string {
	if m == nil || len(userKW) == 0 || len(articleKW) == 0 {
		return nil
	}

	userVectors := m.embed(ctx, userKW)
	articleVectors := m.embed(ctx, articleKW)

	matched := make([]string, 0, len(userKW))
	for i, userVector := range userVectors {
		if userVector == nil {
			continue
		}
		for _, articleVector := range articleVectors {
			if articleVector == nil {
				continue
			}
			if cosine(userVector, articleVector) >= m.opts.Threshold {
				matched = append(matched, userKW[i])
				break
			}
		}
	}

	if len(matched) == 0 {
		return nil
	}
	return matched
}

// embed returns one vector per word, aligned with the input order. Words whose
// vectors could not be computed (provider down and not cached) get a nil row.
func (m *Matcher) embed(ctx context.Context, words []string) [][]float64 {
	vectors := make([][]float64, len(words))

	normalized := make([]string, len(words))
	uncachedIdx := make([]int, 0, len(words))
	for i, word := range words {
		normalized[i] = textnorm.Normalize(word)
		if normalized[i] == "" {
			continue
		}

		vector, found, err := m.cache.Get(normalized[i])
		if err != nil {
			m.logger.Warn().Err(err).Str("keyword", normalized[i]).Msg("embedding cache read failed")
		}
		if found {
			vectors[i] = vector
			continue
		}
		uncachedIdx = append(uncachedIdx, i)
	}

	if len(uncachedIdx) == 0 {
		return vectors
	}

	for _, batchIdx := range keywords.BatchByCount(uncachedIdx, m.opts.BatchSize) {
		texts := make([]string, len(batchIdx))
		for i, idx := range batchIdx {
			texts[i] = normalized[idx]
		}

		batchVectors, err := m.embedBatchWithRetry(ctx, texts)
		if err != nil {
			// Provider is down after the retry: keep whatever came from the
			// cache and stop asking for more.
			m.logger.Error().Err(err).Int("batch_size", len(texts)).Msg("embedding provider unavailable, degrading to cached vectors")
			return vectors
		}

		entries := make(map[string][]float64, len(batchIdx))
		for i, idx := range batchIdx {
			vectors[idx] = batchVectors[i]
			entries[normalized[idx]] = batchVectors[i]
		}
		if err := m.cache.PutBatch(entries); err != nil {
			m.logger.Warn().Err(err).Msg("embedding cache flush failed")
		}

		if err := sleepContext(ctx, m.delayFn()); err != nil {
			return vectors
		}
	}

	return vectors
}

func (m *Matcher) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	batchVectors, err := m.client.Embed(ctx, texts)
	if err == nil {
		return batchVectors, nil
	}

	m.logger.Warn().Err(err).Dur("backoff", m.opts.RetryBackoff).Msg("embedding request failed, retrying once")
	if sleepErr := sleepContext(ctx, m.opts.RetryBackoff); sleepErr != nil {
		return nil, sleepErr
	}
	return m.client.Embed(ctx, texts)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	// vectors are L2-normalized on the way in, so dot product is cosine
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func randomBatchDelay() time.Duration {
	return minBatchDelay + rand.N(maxBatchDelay-minBatchDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
