package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SaveOutcome reports what a SaveArticle call did to storage.
type SaveOutcome int

const (
	SaveUnchanged SaveOutcome = iota
	SaveInserted
	SaveMerged
)

// ArticleUpsert is the save contract: insert the article if its external ID
// is new, otherwise union the keyword sets on the existing row.
type ArticleUpsert struct {
	ExternalID  string
	URL         string
	Source      string
	Title       string
	PublishedAt *time.Time
	Keywords    []string
	FetchedAt   time.Time
}

// ArticleListOptions controls article listing queries.
type ArticleListOptions struct {
	From  time.Time
	To    time.Time
	Limit int
}

// ArticleListItem is used by the articles CLI command and the HTTP listing.
type ArticleListItem struct {
	ExternalID  string     `json:"external_id"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Keywords    []string   `json:"keywords"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// SaveArticle upserts one article inside the caller's transaction. Re-saving
// an already stored article unions the keyword sets; saving identical
// keywords twice leaves the row untouched.
func SaveArticle(ctx context.Context, tx Tx, article ArticleUpsert) (SaveOutcome, error) {
	if article.ExternalID == "" {
		return SaveUnchanged, fmt.Errorf("article external ID is required")
	}

	const selectQ = `
SELECT keywords::text
FROM technus.articles
WHERE external_id = $1
`
	var storedJSON string
	err := tx.QueryRow(ctx, selectQ, article.ExternalID).Scan(&storedJSON)
	switch {
	case err == nil:
		merged, changed, mergeErr := mergeKeywordJSON(storedJSON, article.Keywords)
		if mergeErr != nil {
			return SaveUnchanged, fmt.Errorf("merge keywords for %q: %w", article.ExternalID, mergeErr)
		}
		if !changed {
			return SaveUnchanged, nil
		}
		const updateQ = `
UPDATE technus.articles
SET keywords = $2::jsonb
WHERE external_id = $1
`
		if _, err := tx.Exec(ctx, updateQ, article.ExternalID, merged); err != nil {
			return SaveUnchanged, fmt.Errorf("update article keywords: %w", err)
		}
		return SaveMerged, nil

	case IsNoRows(err):
		keywordsJSON, marshalErr := json.Marshal(normalizeKeywordSet(article.Keywords))
		if marshalErr != nil {
			return SaveUnchanged, fmt.Errorf("encode keywords: %w", marshalErr)
		}
		fetchedAt := article.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}
		const insertQ = `
INSERT INTO technus.articles (external_id, url, source, title, published_at, keywords, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
ON CONFLICT (external_id) DO NOTHING
`
		tag, err := tx.Exec(ctx, insertQ,
			article.ExternalID,
			article.URL,
			article.Source,
			article.Title,
			article.PublishedAt,
			string(keywordsJSON),
			fetchedAt.UTC(),
		)
		if err != nil {
			return SaveUnchanged, fmt.Errorf("insert article: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// lost an insert race; the row exists now
			return SaveUnchanged, nil
		}
		return SaveInserted, nil

	default:
		return SaveUnchanged, fmt.Errorf("load article %q: %w", article.ExternalID, err)
	}
}

// ListArticles lists stored articles in a UTC fetched_at window.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleListOptions) ([]ArticleListItem, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	from := opts.From.UTC()
	to := opts.To.UTC()
	if !from.Before(to) {
		return nil, fmt.Errorf("from must be before to")
	}

	const q = `
SELECT
	a.external_id,
	a.url,
	a.source,
	a.title,
	a.published_at,
	a.keywords::text,
	a.fetched_at
FROM technus.articles a
WHERE a.fetched_at >= $1
  AND a.fetched_at < $2
ORDER BY a.fetched_at DESC, a.external_id DESC
LIMIT $3
`

	rows, err := p.Query(ctx, q, from, to, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, opts.Limit)
	for rows.Next() {
		var row ArticleListItem
		var keywordsJSON string
		if err := rows.Scan(
			&row.ExternalID,
			&row.URL,
			&row.Source,
			&row.Title,
			&row.PublishedAt,
			&keywordsJSON,
			&row.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &row.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords for %q: %w", row.ExternalID, err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}

	return items, nil
}

// DeleteArticlesBefore hard-deletes every article fetched strictly before
// cutoff and returns the number of removed rows.
func (p *Pool) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffUTC := cutoff.UTC()
	if cutoffUTC.IsZero() {
		return 0, fmt.Errorf("cutoff time is required")
	}

	const q = `
DELETE FROM technus.articles
WHERE fetched_at < $1
`
	tag, err := p.Exec(ctx, q, cutoffUTC)
	if err != nil {
		return 0, fmt.Errorf("delete articles before %s: %w", cutoffUTC.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// mergeKeywordJSON unions incoming keywords into a stored JSON array,
// reporting whether the stored set actually grew.
func mergeKeywordJSON(storedJSON string, incoming []string) (string, bool, error) {
	var stored []string
	if storedJSON != "" {
		if err := json.Unmarshal([]byte(storedJSON), &stored); err != nil {
			return "", false, fmt.Errorf("decode stored keywords: %w", err)
		}
	}

	merged := unionKeywords(stored, incoming)
	if len(merged) == len(stored) {
		return storedJSON, false, nil
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return "", false, fmt.Errorf("encode merged keywords: %w", err)
	}
	return string(encoded), true, nil
}

// unionKeywords appends the incoming keywords that are not already present,
// preserving stored order. Union with an already covered set is a no-op.
func unionKeywords(stored, incoming []string) []string {
	seen := make(map[string]struct{}, len(stored)+len(incoming))
	merged := make([]string, 0, len(stored)+len(incoming))
	for _, word := range stored {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		merged = append(merged, word)
	}
	for _, word := range incoming {
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		merged = append(merged, word)
	}
	return merged
}

func normalizeKeywordSet(keywords []string) []string {
	return unionKeywords(nil, keywords)
}
