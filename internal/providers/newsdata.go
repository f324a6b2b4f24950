package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"horse.fit/technus/internal/keywords"
	"horse.fit/technus/internal/match"
	"horse.fit/technus/internal/textnorm"
)

const (
	newsDataName    = "newsdata"
	newsDataBaseURL = "https://newsdata.io/api/1/latest"

	newsDataDateLayout = "2006-01-02 15:04:05"
)

type newsDataEnvelope struct {
	Status  string           `json:"status"`
	Results []newsDataResult `json:"results"`
}

type newsDataResult struct {
	ArticleID   string   `json:"article_id"`
	Link        string   `json:"link"`
	SourceID    string   `json:"source_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PubDate     string   `json:"pubDate"`
	Keywords    []string `json:"keywords"`
}

// NewsData is the fallback adapter: a paginated REST search API keyed by
// query string and API key.
type NewsData struct {
	http    *resty.Client
	baseURL string
	apiKey  string
	opts    Options
}

func NewNewsData(apiKey string, opts Options) *NewsData {
	opts = opts.normalized()
	return &NewsData{
		http:    resty.New().SetTimeout(opts.HTTPTimeout),
		baseURL: newsDataBaseURL,
		apiKey:  apiKey,
		opts:    opts,
	}
}

func (n *NewsData) Name() string { return newsDataName }

func (n *NewsData) Fetch(ctx context.Context, batch []string) ([]Candidate, error) {
	if strings.TrimSpace(n.apiKey) == "" {
		return nil, fmt.Errorf("newsdata API key is not configured")
	}

	var envelope newsDataEnvelope
	resp, err := n.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":          n.apiKey,
			"q":               keywords.JoinQuery(batch),
			"category":        "technology",
			"language":        "en",
			"sort":            "pubdateasc",
			"removeduplicate": "1",
		}).
		SetResult(&envelope).
		Get(n.baseURL)
	if err != nil {
		return nil, fmt.Errorf("newsdata request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("newsdata status %d", resp.StatusCode())
	}
	if envelope.Status != "success" {
		return nil, fmt.Errorf("newsdata response status %q", envelope.Status)
	}

	candidates := make([]Candidate, 0, len(envelope.Results))
	for _, result := range envelope.Results {
		publishedAt, ok := parseNewsDataDate(result.PubDate)
		if !ok {
			continue
		}
		if !withinRetentionWindow(publishedAt, n.opts.RetentionDays) {
			continue
		}

		title := strings.TrimSpace(result.Title)
		description := stripHTML(result.Description)

		// the API ships its own keyword list; fold it into the matchable text
		text := candidateText(ctx, n.opts, title, description, result.Link)
		if extracted := textnorm.NormalizeAll(result.Keywords); len(extracted) > 0 {
			text += " " + strings.Join(extracted, " ")
		}
		matched := match.Keywords(batch, text, n.opts.FuzzyThreshold)

		candidate := Candidate{
			ID:          strings.TrimSpace(result.ArticleID),
			URL:         strings.TrimSpace(result.Link),
			Source:      strings.TrimSpace(result.SourceID),
			Title:       title,
			Description: description,
			PublishedAt: publishedAt,
			Keywords:    matched,
		}
		if candidate.ID == "" || candidate.URL == "" || candidate.Title == "" || len(candidate.Keywords) == 0 {
			continue
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func parseNewsDataDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(newsDataDateLayout, raw); err == nil {
		return ts.UTC(), true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}
