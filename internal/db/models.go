package db

import "time"

// Article maps technus.articles. The primary key is the identifier the
// upstream provider assigned, so a re-fetched article lands on its existing
// row. Keywords holds a JSON array of normalized keyword strings.
type Article struct {
	ExternalID  string     `gorm:"column:external_id;type:text;primaryKey"`
	URL         string     `gorm:"column:url;type:text;not null"`
	Source      string     `gorm:"column:source;type:text;not null"`
	Title       string     `gorm:"column:title;type:text;not null"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz"`
	Keywords    string     `gorm:"column:keywords;type:jsonb;not null;default:'[]'"`
	FetchedAt   time.Time  `gorm:"column:fetched_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "technus.articles" }

// Preference maps technus.preferences. Keywords are stored normalized, one
// row per user+category+keyword.
type Preference struct {
	PreferenceID int64     `gorm:"column:preference_id;primaryKey;autoIncrement"`
	UserID       string    `gorm:"column:user_id;type:text;not null;uniqueIndex:ux_preferences_user_category_keyword"`
	Category     string    `gorm:"column:category;type:text;not null;uniqueIndex:ux_preferences_user_category_keyword"`
	Keyword      string    `gorm:"column:keyword;type:text;not null;uniqueIndex:ux_preferences_user_category_keyword"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Preference) TableName() string { return "technus.preferences" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&Preference{},
	}
}
