package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/technus/internal/db"
	"horse.fit/technus/internal/globaltime"
	"horse.fit/technus/internal/providers"
)

type fakeTx struct {
	commits   int
	rollbacks int
}

func (t *fakeTx) QueryRow(ctx context.Context, query string, args ...any) *db.Row {
	return &db.Row{}
}

func (t *fakeTx) Query(ctx context.Context, query string, args ...any) (*db.Rows, error) {
	return nil, db.ErrNoRows
}

func (t *fakeTx) Exec(ctx context.Context, query string, args ...any) (db.CommandTag, error) {
	return db.CommandTag{}, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rollbacks++
	return nil
}

type fakeStore struct {
	keywords   []string
	collectErr error
	tx         fakeTx
	cutoff     time.Time
	deleted    int64
}

func (s *fakeStore) CollectKeywords(ctx context.Context) ([]string, error) {
	return s.keywords, s.collectErr
}

func (s *fakeStore) BeginTx(ctx context.Context, opts db.TxOptions) (db.Tx, error) {
	return &s.tx, nil
}

func (s *fakeStore) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, nil
}

type stubFetcher struct {
	name       string
	calls      int
	batches    [][]string
	candidates []providers.Candidate
	err        error
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Fetch(ctx context.Context, batch []string) ([]providers.Candidate, error) {
	f.calls++
	f.batches = append(f.batches, append([]string(nil), batch...))
	return f.candidates, f.err
}

type stubMatcher struct {
	result []string
}

func (m *stubMatcher) SemanticMatches(ctx context.Context, userKW, articleKW []string) []string {
	return m.result
}

func newTestService(store *fakeStore, matcher KeywordMatcher, primary, fallback providers.Fetcher, maxChars int) *Service {
	return NewService(store, matcher, primary, fallback, Options{
		QueryMaxChars: maxChars,
		Logger:        zerolog.Nop(),
	})
}

func TestRunFetchCycleEmptyPreferencesNoOp(t *testing.T) {
	t.Parallel()

	primary := &stubFetcher{name: "primary"}
	svc := newTestService(&fakeStore{}, &stubMatcher{}, primary, nil, 100)

	result, err := svc.RunFetchCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != (CycleResult{}) {
		t.Fatalf("expected zero result, got %+v", result)
	}
	if primary.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", primary.calls)
	}
}

func TestRunFetchCycleFallbackInvokedForEveryBatch(t *testing.T) {
	t.Parallel()

	primary := &stubFetcher{name: "primary", err: errors.New("primary down")}
	fallback := &stubFetcher{name: "fallback"}
	store := &fakeStore{keywords: []string{"aaaa", "bbbb", "cccc"}}

	// max 9 chars forces one keyword per batch
	svc := newTestService(store, &stubMatcher{}, primary, fallback, 9)

	result, err := svc.RunFetchCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Batches != 3 {
		t.Fatalf("expected 3 batches, got %d", result.Batches)
	}
	if fallback.calls != primary.calls || fallback.calls != 3 {
		t.Fatalf("expected fallback for every batch: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
	if result.BatchesFailed != 0 {
		t.Fatalf("fallback succeeded, expected no failed batches, got %d", result.BatchesFailed)
	}
}

func TestRunFetchCycleBothProvidersFailNeverFatal(t *testing.T) {
	t.Parallel()

	primary := &stubFetcher{name: "primary", err: errors.New("primary down")}
	fallback := &stubFetcher{name: "fallback", err: errors.New("fallback down")}
	store := &fakeStore{keywords: []string{"ai", "robotics"}}

	svc := newTestService(store, &stubMatcher{}, primary, fallback, 100)

	result, err := svc.RunFetchCycle(context.Background())
	if err != nil {
		t.Fatalf("batch failures must not abort the cycle: %v", err)
	}
	if result.BatchesFailed != result.Batches || result.Batches == 0 {
		t.Fatalf("expected every batch to fail, got %+v", result)
	}
}

func TestRunFetchCyclePersistsMatchedCandidates(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC)
	primary := &stubFetcher{
		name: "primary",
		candidates: []providers.Candidate{
			{ID: "g-1", URL: "https://example.com/1", Source: "wire", Title: "AI news", PublishedAt: published, Keywords: []string{"ai"}},
			{ID: "g-2", URL: "https://example.com/2", Source: "wire", Title: "Nothing matched", PublishedAt: published},
		},
	}
	store := &fakeStore{keywords: []string{"ai", "robotics"}}
	svc := newTestService(store, &stubMatcher{result: []string{"robotics"}}, primary, nil, 100)

	var savedUpserts []db.ArticleUpsert
	svc.save = func(ctx context.Context, tx db.Tx, article db.ArticleUpsert) (db.SaveOutcome, error) {
		savedUpserts = append(savedUpserts, article)
		return db.SaveInserted, nil
	}

	result, err := svc.RunFetchCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Saved != 1 || result.Merged != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(savedUpserts) != 1 {
		t.Fatalf("expected 1 save, got %d", len(savedUpserts))
	}

	got := savedUpserts[0]
	if got.ExternalID != "g-1" {
		t.Fatalf("unexpected external ID %q", got.ExternalID)
	}
	if want := []string{"ai", "robotics"}; !reflect.DeepEqual(got.Keywords, want) {
		t.Fatalf("expected fuzzy and semantic keywords unioned: got %v want %v", got.Keywords, want)
	}
	if store.tx.commits != 1 {
		t.Fatalf("expected one batch commit, got %d", store.tx.commits)
	}
}

func TestRunFetchCycleCountsMerges(t *testing.T) {
	t.Parallel()

	primary := &stubFetcher{
		name: "primary",
		candidates: []providers.Candidate{
			{ID: "x-1", URL: "https://example.com/x", Source: "wire", Title: "Seen before", PublishedAt: time.Now().UTC(), Keywords: []string{"ai"}},
		},
	}
	store := &fakeStore{keywords: []string{"ai"}}
	svc := newTestService(store, &stubMatcher{}, primary, nil, 100)
	svc.save = func(ctx context.Context, tx db.Tx, article db.ArticleUpsert) (db.SaveOutcome, error) {
		return db.SaveMerged, nil
	}

	result, err := svc.RunFetchCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Saved != 0 || result.Merged != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
}

func TestSweepCutoffBoundary(t *testing.T) {
	globaltime.SetMockTime(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &fakeStore{deleted: 3}
	svc := newTestService(store, &stubMatcher{}, &stubFetcher{name: "primary"}, nil, 100)

	deleted, err := svc.Sweep(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("unexpected deleted count %d", deleted)
	}

	// articles fetched on March 5 (exactly five days back) fall before the
	// cutoff and are deleted; March 6 survives
	want := time.Date(2025, time.March, 6, 0, 0, 0, 0, time.UTC)
	if !store.cutoff.Equal(want) {
		t.Fatalf("unexpected cutoff: got %s want %s", store.cutoff, want)
	}
}

func TestSweepDefaultHorizon(t *testing.T) {
	globaltime.SetMockTime(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &fakeStore{}
	svc := newTestService(store, &stubMatcher{}, &stubFetcher{name: "primary"}, nil, 100)

	if _, err := svc.Sweep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.March, 6, 0, 0, 0, 0, time.UTC)
	if !store.cutoff.Equal(want) {
		t.Fatalf("unexpected default cutoff: got %s want %s", store.cutoff, want)
	}
}
