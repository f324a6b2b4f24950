package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/technus/internal/db"
	"horse.fit/technus/internal/globaltime"
	"horse.fit/technus/internal/keywords"
	"horse.fit/technus/internal/providers"
)

const DefaultHorizonDays = 5

// Store is the persistence surface the orchestrator needs.
type Store interface {
	CollectKeywords(ctx context.Context) ([]string, error)
	BeginTx(ctx context.Context, opts db.TxOptions) (db.Tx, error)
	DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeywordMatcher confirms which user keywords are semantically close to a
// candidate's keywords.
type KeywordMatcher interface {
	SemanticMatches(ctx context.Context, userKW, articleKW []string) []string
}

// Options tunes a fetch cycle.
type Options struct {
	QueryMaxChars int
	Logger        zerolog.Logger
}

// CycleResult summarizes one fetch cycle.
type CycleResult struct {
	Batches       int
	BatchesFailed int
	Fetched       int
	Saved         int
	Merged        int
}

// Service drives the fetch cycle: collect keywords, batch them, query the
// primary provider with fallback, match, persist. Batch and item failures
// are logged and contained; they never abort the cycle.
type Service struct {
	store    Store
	matcher  KeywordMatcher
	primary  providers.Fetcher
	fallback providers.Fetcher
	opts     Options

	save func(ctx context.Context, tx db.Tx, article db.ArticleUpsert) (db.SaveOutcome, error)
}

func NewService(store Store, matcher KeywordMatcher, primary, fallback providers.Fetcher, opts Options) *Service {
	if opts.QueryMaxChars <= 0 {
		opts.QueryMaxChars = 100
	}
	return &Service{
		store:    store,
		matcher:  matcher,
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		save:     db.SaveArticle,
	}
}

// RunFetchCycle runs one end-to-end cycle. An empty preference store is a
// no-op. Each batch commits its own transaction, so a crash loses at most
// the in-flight batch.
func (s *Service) RunFetchCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult

	userKeywords, err := s.store.CollectKeywords(ctx)
	if err != nil {
		return result, fmt.Errorf("collect keywords: %w", err)
	}
	if len(userKeywords) == 0 {
		s.opts.Logger.Info().Msg("no keyword preferences stored, nothing to fetch")
		return result, nil
	}

	batches := keywords.BatchByLength(userKeywords, s.opts.QueryMaxChars, s.opts.Logger)
	result.Batches = len(batches)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		candidates, err := s.fetchBatch(ctx, batch)
		if err != nil {
			s.opts.Logger.Error().Err(err).Int("batch", i).Strs("keywords", batch).Msg("batch failed on both providers, skipping")
			result.BatchesFailed++
			continue
		}
		result.Fetched += len(candidates)

		saved, merged := s.persistBatch(ctx, batch, candidates)
		result.Saved += saved
		result.Merged += merged
	}

	s.opts.Logger.Info().
		Int("batches", result.Batches).
		Int("batches_failed", result.BatchesFailed).
		Int("fetched", result.Fetched).
		Int("saved", result.Saved).
		Int("merged", result.Merged).
		Msg("fetch cycle finished")

	return result, nil
}

// fetchBatch queries the primary provider, falling back to the secondary on
// any failure.
func (s *Service) fetchBatch(ctx context.Context, batch []string) ([]providers.Candidate, error) {
	candidates, err := s.primary.Fetch(ctx, batch)
	if err == nil {
		return candidates, nil
	}

	if s.fallback == nil {
		return nil, fmt.Errorf("%s failed and no fallback is configured: %w", s.primary.Name(), err)
	}

	s.opts.Logger.Warn().Err(err).Str("provider", s.primary.Name()).Msg("primary provider failed, trying fallback")
	candidates, fallbackErr := s.fallback.Fetch(ctx, batch)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%s failed (%v), %s failed: %w", s.primary.Name(), err, s.fallback.Name(), fallbackErr)
	}
	return candidates, nil
}

// persistBatch matches and saves a batch's candidates inside one transaction.
// Individual save failures are logged and skipped.
func (s *Service) persistBatch(ctx context.Context, batch []string, candidates []providers.Candidate) (saved, merged int) {
	if len(candidates) == 0 {
		return 0, 0
	}

	tx, err := s.store.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		s.opts.Logger.Error().Err(err).Msg("begin batch transaction failed, skipping batch")
		return 0, 0
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, candidate := range candidates {
		matched := s.matchCandidate(ctx, batch, candidate)
		if len(matched) == 0 {
			continue
		}

		publishedAt := candidate.PublishedAt
		outcome, err := s.save(ctx, tx, db.ArticleUpsert{
			ExternalID:  candidate.ID,
			URL:         candidate.URL,
			Source:      candidate.Source,
			Title:       candidate.Title,
			PublishedAt: &publishedAt,
			Keywords:    matched,
			FetchedAt:   globaltime.UTC(),
		})
		if err != nil {
			s.opts.Logger.Warn().Err(err).Str("external_id", candidate.ID).Msg("article save failed, skipping item")
			continue
		}
		switch outcome {
		case db.SaveInserted:
			saved++
		case db.SaveMerged:
			merged++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.opts.Logger.Error().Err(err).Msg("batch commit failed, batch lost")
		return 0, 0
	}
	return saved, merged
}

// matchCandidate unions the candidate's fuzzy-matched keywords with semantic
// confirmations of the full batch against them.
func (s *Service) matchCandidate(ctx context.Context, batch []string, candidate providers.Candidate) []string {
	matched := append([]string(nil), candidate.Keywords...)
	if s.matcher == nil {
		return matched
	}

	seen := make(map[string]struct{}, len(matched))
	for _, word := range matched {
		seen[word] = struct{}{}
	}
	for _, word := range s.matcher.SemanticMatches(ctx, batch, candidate.Keywords) {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		matched = append(matched, word)
	}
	return matched
}

// Sweep deletes articles at or beyond the retention horizon. An article whose
// fetch date lies exactly horizonDays back is removed; one fetched
// horizonDays-1 days ago survives. Idempotent.
func (s *Service) Sweep(ctx context.Context, horizonDays int) (int64, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	today := globaltime.UTC().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, -(horizonDays - 1))

	deleted, err := s.store.DeleteArticlesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}

	s.opts.Logger.Info().
		Int("horizon_days", horizonDays).
		Time("cutoff", cutoff).
		Int64("deleted", deleted).
		Msg("retention sweep finished")

	return deleted, nil
}
