package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"TECHNUS_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"TECHNUS_DB_MAX_CONNS" default:"8"`

	NewsDataKey     string `envconfig:"NEWSDATA_KEY" default:""`
	GoogleNewsTopic string `envconfig:"GOOGLE_NEWS_TOPIC" default:"TECHNOLOGY"`
	EnrichFullText  bool   `envconfig:"ENRICH_FULL_TEXT" default:"false"`

	EmbeddingEndpoint  string `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingCachePath string `envconfig:"EMBEDDING_CACHE_PATH" default:"embedding_cache.db"`

	QueryMaxChars     int     `envconfig:"QUERY_MAX_CHARS" default:"100"`
	FuzzyThreshold    int     `envconfig:"FUZZY_THRESHOLD" default:"65"`
	SemanticThreshold float64 `envconfig:"SEMANTIC_THRESHOLD" default:"0.92"`
	RetentionDays     int     `envconfig:"RETENTION_DAYS" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("TECHNUS_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("TECHNUS_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("TECHNUS_DB_MIN_CONNS (%d) cannot exceed TECHNUS_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.EmbeddingEndpoint) == "" {
		return fmt.Errorf("EMBEDDING_ENDPOINT is required")
	}
	if strings.TrimSpace(c.EmbeddingCachePath) == "" {
		return fmt.Errorf("EMBEDDING_CACHE_PATH is required")
	}
	if c.QueryMaxChars < 8 {
		return fmt.Errorf("QUERY_MAX_CHARS must be >= 8")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		return fmt.Errorf("FUZZY_THRESHOLD must be between 0 and 100")
	}
	if c.SemanticThreshold <= 0 || c.SemanticThreshold > 1 {
		return fmt.Errorf("SEMANTIC_THRESHOLD must be in (0, 1]")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be >= 1")
	}
	return nil
}
