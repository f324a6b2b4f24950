package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/technus/internal/db"
	"horse.fit/technus/internal/pipeline"
)

type stubLister struct {
	items []db.ArticleListItem
	opts  db.ArticleListOptions
	err   error
}

func (l *stubLister) ListArticles(ctx context.Context, opts db.ArticleListOptions) ([]db.ArticleListItem, error) {
	l.opts = opts
	return l.items, l.err
}

type stubRunner struct {
	result pipeline.CycleResult
	calls  int
	err    error
}

func (r *stubRunner) RunFetchCycle(ctx context.Context) (pipeline.CycleResult, error) {
	r.calls++
	return r.result, r.err
}

func newTestServer(lister *stubLister, runner *stubRunner) *Server {
	return NewServer(lister, runner, zerolog.Nop(), Options{})
}

func doRequest(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.newEcho().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubLister{}, &stubRunner{})
	rec, body := doRequest(t, s, http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if body["status"] != "success" {
		t.Fatalf("unexpected envelope: %v", body)
	}
}

func TestHandleFetchCycle(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{result: pipeline.CycleResult{Batches: 2, Fetched: 7, Saved: 4, Merged: 1}}
	s := newTestServer(&stubLister{}, runner)

	rec, body := doRequest(t, s, http.MethodPost, "/v1/fetch-cycle")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one cycle run, got %d", runner.calls)
	}

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	if data["saved"] != float64(4) {
		t.Fatalf("unexpected saved count: %v", data["saved"])
	}
}

func TestHandleFetchCycleError(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{err: errors.New("store down")}
	s := newTestServer(&stubLister{}, runner)

	rec, body := doRequest(t, s, http.MethodPost, "/v1/fetch-cycle")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if body["status"] != "error" {
		t.Fatalf("unexpected envelope: %v", body)
	}
}

func TestHandleArticlesWindow(t *testing.T) {
	t.Parallel()

	lister := &stubLister{items: []db.ArticleListItem{{ExternalID: "g-1", Title: "AI news", Keywords: []string{"ai"}}}}
	s := newTestServer(lister, &stubRunner{})

	rec, body := doRequest(t, s, http.MethodGet, "/v1/articles?from=2025-03-01&to=2025-03-05&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if body["status"] != "success" {
		t.Fatalf("unexpected envelope: %v", body)
	}

	if lister.opts.Limit != 10 {
		t.Fatalf("unexpected limit %d", lister.opts.Limit)
	}
	wantFrom := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !lister.opts.From.Equal(wantFrom) {
		t.Fatalf("unexpected from: %s", lister.opts.From)
	}
	if !lister.opts.To.After(time.Date(2025, time.March, 5, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("to should extend to end of day, got %s", lister.opts.To)
	}
}

func TestHandleArticlesRejectsBadParams(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubLister{}, &stubRunner{})

	cases := []string{
		"/v1/articles?limit=zero",
		"/v1/articles?limit=100000",
		"/v1/articles?from=whenever",
		"/v1/articles?from=2025-03-05&to=2025-03-01",
	}
	for _, target := range cases {
		rec, body := doRequest(t, s, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: unexpected status %d", target, rec.Code)
		}
		if body["status"] != "fail" {
			t.Fatalf("%s: unexpected envelope: %v", target, body)
		}
	}
}
