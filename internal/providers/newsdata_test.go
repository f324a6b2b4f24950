package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"horse.fit/technus/internal/globaltime"
)

func TestNewsDataFetchMatchesKeywords(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(now)
	defer globaltime.ResetTime()

	var gotParams map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParams = map[string]string{
			"apikey":   r.URL.Query().Get("apikey"),
			"q":        r.URL.Query().Get("q"),
			"category": r.URL.Query().Get("category"),
			"language": r.URL.Query().Get("language"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"results": []map[string]any{
				{
					"article_id":  "nd-1",
					"link":        "https://example.com/quantum",
					"source_id":   "example_wire",
					"title":       "Quantum computing milestone reached",
					"description": "Researchers demonstrate error correction.",
					"pubDate":     now.Add(-4 * time.Hour).Format("2006-01-02 15:04:05"),
					"keywords":    []string{"Quantum", "Hardware"},
				},
				{
					"article_id":  "nd-2",
					"link":        "https://example.com/recipes",
					"source_id":   "example_wire",
					"title":       "Ten easy weeknight dinners",
					"description": "Pasta and more.",
					"pubDate":     now.Add(-4 * time.Hour).Format("2006-01-02 15:04:05"),
				},
			},
		})
	}))
	defer server.Close()

	provider := NewNewsData("test-key", Options{RetentionDays: 5})
	provider.baseURL = server.URL

	candidates, err := provider.Fetch(context.Background(), []string{"quantum", "ai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotParams["apikey"] != "test-key" {
		t.Fatalf("unexpected apikey %q", gotParams["apikey"])
	}
	if gotParams["q"] != "quantum OR ai" {
		t.Fatalf("unexpected query %q", gotParams["q"])
	}
	if gotParams["category"] != "technology" || gotParams["language"] != "en" {
		t.Fatalf("unexpected filter params %v", gotParams)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	got := candidates[0]
	if got.ID != "nd-1" || got.Source != "example_wire" {
		t.Fatalf("unexpected candidate %+v", got)
	}
	if len(got.Keywords) != 1 || got.Keywords[0] != "quantum" {
		t.Fatalf("unexpected keywords %v", got.Keywords)
	}
}

func TestNewsDataFetchRejectsFailureStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "error", "results": []any{}})
	}))
	defer server.Close()

	provider := NewNewsData("test-key", Options{})
	provider.baseURL = server.URL

	if _, err := provider.Fetch(context.Background(), []string{"ai"}); err == nil {
		t.Fatal("expected an error for non-success status")
	}
}

func TestNewsDataFetchRequiresAPIKey(t *testing.T) {
	t.Parallel()

	provider := NewNewsData("  ", Options{})
	if _, err := provider.Fetch(context.Background(), []string{"ai"}); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestParseNewsDataDate(t *testing.T) {
	t.Parallel()

	ts, ok := parseNewsDataDate("2025-03-10 09:30:00")
	if !ok {
		t.Fatal("expected API date layout to parse")
	}
	if ts.Hour() != 9 {
		t.Fatalf("unexpected hour %d", ts.Hour())
	}
	if _, ok := parseNewsDataDate("yesterday"); ok {
		t.Fatal("expected junk date to fail")
	}
}
