package embedding

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// stubEmbedder returns canned unit vectors per text.
type stubEmbedder struct {
	vectors map[string][]float64
	calls   int
	fail    bool
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	s.calls++
	if s.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vector, ok := s.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", text)
		}
		out[i] = vector
	}
	return out, nil
}

func newTestMatcher(t *testing.T, client Embedder) *Matcher {
	t.Helper()

	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	matcher := NewMatcher(cache, client, MatcherOptions{
		RetryBackoff: time.Millisecond,
	}, zerolog.Nop())
	matcher.delayFn = func() time.Duration { return 0 }
	return matcher
}

func TestSemanticMatchesThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	// dot(user, article) lands exactly on the default threshold
	client := &stubEmbedder{vectors: map[string][]float64{
		"ai":       {1, 0},
		"machines": {DefaultSemanticThreshold, math.Sqrt(1 - DefaultSemanticThreshold*DefaultSemanticThreshold)},
	}}

	matcher := newTestMatcher(t, client)
	got := matcher.SemanticMatches(context.Background(), []string{"ai"}, []string{"machines"})
	if len(got) != 1 || got[0] != "ai" {
		t.Fatalf("expected match at exact threshold, got %#v", got)
	}
}

func TestSemanticMatchesBelowThreshold(t *testing.T) {
	t.Parallel()

	client := &stubEmbedder{vectors: map[string][]float64{
		"ai":     {1, 0},
		"bakery": {0, 1},
	}}

	matcher := newTestMatcher(t, client)
	if got := matcher.SemanticMatches(context.Background(), []string{"ai"}, []string{"bakery"}); got != nil {
		t.Fatalf("expected no match for orthogonal vectors, got %#v", got)
	}
}

func TestSemanticMatchesEmptyInputs(t *testing.T) {
	t.Parallel()

	client := &stubEmbedder{}
	matcher := newTestMatcher(t, client)

	if got := matcher.SemanticMatches(context.Background(), nil, []string{"ai"}); got != nil {
		t.Fatalf("expected nil for empty user keywords, got %#v", got)
	}
	if got := matcher.SemanticMatches(context.Background(), []string{"ai"}, nil); got != nil {
		t.Fatalf("expected nil for empty article keywords, got %#v", got)
	}
	if client.calls != 0 {
		t.Fatalf("embedder should not be called for empty inputs, got %d calls", client.calls)
	}
}

func TestSemanticMatchesDegradesWhenProviderDown(t *testing.T) {
	t.Parallel()

	client := &stubEmbedder{fail: true}
	matcher := newTestMatcher(t, client)

	got := matcher.SemanticMatches(context.Background(), []string{"ai"}, []string{"robots"})
	if got != nil {
		t.Fatalf("expected degraded empty match, got %#v", got)
	}
	// one initial attempt plus exactly one retry, per embed() call
	if client.calls != 4 {
		t.Fatalf("expected 4 embed attempts (2 calls x retry once), got %d", client.calls)
	}
}

func TestSemanticMatchesUsesCacheOnSecondCall(t *testing.T) {
	t.Parallel()

	client := &stubEmbedder{vectors: map[string][]float64{
		"ai":       {1, 0},
		"robotics": {1, 0},
	}}
	matcher := newTestMatcher(t, client)

	first := matcher.SemanticMatches(context.Background(), []string{"ai"}, []string{"robotics"})
	if len(first) != 1 {
		t.Fatalf("expected match on first call, got %#v", first)
	}
	callsAfterFirst := client.calls

	second := matcher.SemanticMatches(context.Background(), []string{"ai"}, []string{"robotics"})
	if len(second) != 1 {
		t.Fatalf("expected match on second call, got %#v", second)
	}
	if client.calls != callsAfterFirst {
		t.Fatalf("expected cached vectors to bypass the provider, calls went %d -> %d", callsAfterFirst, client.calls)
	}
}
