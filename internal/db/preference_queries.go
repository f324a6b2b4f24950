package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"horse.fit/technus/internal/textnorm"
)

// CategorizedKeywords groups a user's raw keyword preferences by category
// name (job, industry, keyword).
type CategorizedKeywords map[string][]string

// PreferenceItem is used by the preferences list CLI command.
type PreferenceItem struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
}

// ReplacePreferences swaps a user's stored preferences for the given set in
// one transaction. Keywords are normalized before storage and duplicates
// within a user+category collapse to one row.
func (p *Pool) ReplacePreferences(ctx context.Context, userID string, categorized CategorizedKeywords) (int64, error) {
	trimmedUser := strings.TrimSpace(userID)
	if trimmedUser == "" {
		return 0, fmt.Errorf("user ID is required")
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const deleteQ = `
DELETE FROM technus.preferences
WHERE user_id = $1
`
	if _, err := tx.Exec(ctx, deleteQ, trimmedUser); err != nil {
		return 0, fmt.Errorf("delete previous preferences: %w", err)
	}

	const insertQ = `
INSERT INTO technus.preferences (user_id, category, keyword)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`

	var inserted int64
	for _, category := range sortedCategories(categorized) {
		seen := make(map[string]struct{}, len(categorized[category]))
		for _, raw := range categorized[category] {
			keyword := textnorm.Normalize(raw)
			if keyword == "" {
				continue
			}
			if _, ok := seen[keyword]; ok {
				continue
			}
			seen[keyword] = struct{}{}

			tag, err := tx.Exec(ctx, insertQ, trimmedUser, category, keyword)
			if err != nil {
				return 0, fmt.Errorf("insert preference %q/%q: %w", category, keyword, err)
			}
			inserted += tag.RowsAffected()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return inserted, nil
}

// CollectKeywords returns the distinct normalized keyword union across all
// users and categories, the set a fetch cycle queries providers for.
func (p *Pool) CollectKeywords(ctx context.Context) ([]string, error) {
	const q = `
SELECT DISTINCT keyword
FROM technus.preferences
ORDER BY keyword
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	keywords := make([]string, 0, 64)
	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		keywords = append(keywords, keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows: %w", err)
	}

	return keywords, nil
}

// ListPreferences lists stored preferences, optionally for a single user.
func (p *Pool) ListPreferences(ctx context.Context, userID string) ([]PreferenceItem, error) {
	const q = `
SELECT user_id, category, keyword
FROM technus.preferences
WHERE ($1 = '' OR user_id = $1)
ORDER BY user_id, category, keyword
`

	rows, err := p.Query(ctx, q, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	items := make([]PreferenceItem, 0, 64)
	for rows.Next() {
		var row PreferenceItem
		if err := rows.Scan(&row.UserID, &row.Category, &row.Keyword); err != nil {
			return nil, fmt.Errorf("scan preference row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preference rows: %w", err)
	}

	return items, nil
}

func sortedCategories(categorized CategorizedKeywords) []string {
	categories := make([]string, 0, len(categorized))
	for category := range categorized {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}
