package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"horse.fit/technus/internal/keywords"
	"horse.fit/technus/internal/langdetect"
	"horse.fit/technus/internal/match"
)

const (
	googleNewsName    = "google_news"
	googleNewsBaseURL = "https://news.google.com/rss/search"
)

type rssDocument struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Link        string `xml:"link"`
	Source      string `xml:"source"`
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// GoogleNews is the primary adapter: a feed search queried with an OR-joined
// keyword string plus a fixed topic filter.
type GoogleNews struct {
	http    *resty.Client
	baseURL string
	topic   string
	opts    Options
}

func NewGoogleNews(topic string, opts Options) *GoogleNews {
	opts = opts.normalized()
	return &GoogleNews{
		http:    resty.New().SetTimeout(opts.HTTPTimeout),
		baseURL: googleNewsBaseURL,
		topic:   strings.TrimSpace(topic),
		opts:    opts,
	}
}

func (g *GoogleNews) Name() string { return googleNewsName }

// Fetch queries the feed and maps dated items into candidates carrying the
// subset of batch keywords that match their text.
func (g *GoogleNews) Fetch(ctx context.Context, batch []string) ([]Candidate, error) {
	query := keywords.JoinQuery(batch)
	if g.topic != "" {
		query += " topic:" + g.topic
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    query,
			"hl":   "en-US",
			"gl":   "US",
			"ceid": "US:en",
		}).
		Get(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("google news request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("google news status %d", resp.StatusCode())
	}

	var doc rssDocument
	if err := xml.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("decode google news feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		publishedAt, ok := parseRSSDate(item.PubDate)
		if !ok {
			continue
		}
		if !withinRetentionWindow(publishedAt, g.opts.RetentionDays) {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if !langdetect.IsEnglish(title) {
			continue
		}

		description := stripHTML(item.Description)
		text := candidateText(ctx, g.opts, title, description, item.Link)
		matched := match.Keywords(batch, text, g.opts.FuzzyThreshold)

		candidate := Candidate{
			ID:          strings.TrimSpace(item.GUID),
			URL:         strings.TrimSpace(item.Link),
			Source:      sourceOrDefault(item.Source),
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

func sourceOrDefault(raw string) string {
	if source := strings.TrimSpace(raw); source != "" {
		return source
	}
	return "Google News"
}

// parseRSSDate accepts the RFC1123 variants feed items carry.
func parseRSSDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
