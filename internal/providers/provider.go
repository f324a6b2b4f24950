package providers

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"horse.fit/technus/internal/globaltime"
	"horse.fit/technus/internal/match"
	"horse.fit/technus/internal/reader"
)

const (
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultRetentionDays = 5

	enrichTextLimit = 4000
)

// Candidate is the normalized article shape every adapter produces.
type Candidate struct {
	ID          string
	URL         string
	Source      string
	Title       string
	Description string
	PublishedAt time.Time
	Keywords    []string
}

// Fetcher queries one upstream news source for a batch of keywords. Adapters
// report failures as errors; the orchestrator decides whether to fall back.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, batch []string) ([]Candidate, error)
}

// Options carries the tunables shared by all adapters.
type Options struct {
	FuzzyThreshold int
	RetentionDays  int
	EnrichFullText bool
	HTTPTimeout    time.Duration
	Logger         zerolog.Logger
}

func (o Options) normalized() Options {
	if o.FuzzyThreshold <= 0 {
		o.FuzzyThreshold = match.DefaultFuzzyThreshold
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = DefaultRetentionDays
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = DefaultHTTPTimeout
	}
	return o
}

// withinRetentionWindow reports whether a publication date is recent enough
// to be worth storing at all.
func withinRetentionWindow(publishedAt time.Time, retentionDays int) bool {
	if publishedAt.IsZero() {
		return false
	}
	cutoff := globaltime.UTC().AddDate(0, 0, -retentionDays)
	return !publishedAt.Before(cutoff)
}

// stripHTML extracts visible text from HTML fragments (RSS descriptions carry
// anchor markup).
func stripHTML(fragment string) string {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}
	return strings.TrimSpace(doc.Text())
}

// candidateText assembles the text keyword matching runs against, optionally
// enriched with readable full text from the linked page.
func candidateText(ctx context.Context, opts Options, title, description, articleURL string) string {
	parts := make([]string, 0, 3)
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, title)
	}
	if description = strings.TrimSpace(description); description != "" {
		parts = append(parts, description)
	}

	if opts.EnrichFullText && strings.TrimSpace(articleURL) != "" {
		text, err := reader.FetchText(ctx, articleURL, title)
		if err != nil {
			opts.Logger.Debug().Err(err).Str("url", articleURL).Msg("full-text enrichment failed")
		} else {
			if runes := []rune(text); len(runes) > enrichTextLimit {
				text = string(runes[:enrichTextLimit])
			}
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}
