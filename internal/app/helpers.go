package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/technus/internal/cli"
	"horse.fit/technus/internal/config"
	"horse.fit/technus/internal/db"
	"horse.fit/technus/internal/embedding"
	"horse.fit/technus/internal/globaltime"
	"horse.fit/technus/internal/logging"
	"horse.fit/technus/internal/pipeline"
	"horse.fit/technus/internal/providers"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func defaultUTCDayString() string {
	now := globaltime.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func parseUTCDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	day, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be YYYY-MM-DD")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC), nil
}

func parseUTCDateRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	fromDay, err := parseUTCDate(fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
	}
	toDay, err := parseUTCDate(toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
	}
	if toDay.Before(fromDay) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from must be <= --to")
	}
	return fromDay, toDay.Add(24 * time.Hour), nil
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatUTCTimestampPtr(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

func connectPool(timeout time.Duration, envLoader *cli.EnvLoader) (context.Context, context.CancelFunc, *db.Pool, *config.Config, zerolog.Logger, error) {
	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		return nil, nil, nil, nil, zerolog.Nop(), err
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, zerolog.Nop(), fmt.Errorf("failed to connect to database: %w", err)
	}

	return ctx, cancel, pool, cfg, logger, nil
}

// buildService wires the full fetch pipeline: providers, embedding cache and
// matcher, orchestrator. The returned cleanup closes the embedding cache.
func buildService(cfg *config.Config, logger zerolog.Logger, pool *db.Pool) (*pipeline.Service, func(), error) {
	cache, err := embedding.OpenCache(cfg.EmbeddingCachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open embedding cache: %w", err)
	}

	client := embedding.NewClient(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, 0)
	matcher := embedding.NewMatcher(cache, client, embedding.MatcherOptions{
		Threshold: cfg.SemanticThreshold,
	}, logger)

	providerOpts := providers.Options{
		FuzzyThreshold: cfg.FuzzyThreshold,
		RetentionDays:  cfg.RetentionDays,
		EnrichFullText: cfg.EnrichFullText,
		Logger:         logger,
	}

	primary := providers.NewGoogleNews(cfg.GoogleNewsTopic, providerOpts)

	var fallback providers.Fetcher
	if strings.TrimSpace(cfg.NewsDataKey) != "" {
		fallback = providers.NewNewsData(cfg.NewsDataKey, providerOpts)
	} else {
		logger.Warn().Msg("NEWSDATA_KEY not set, running without a fallback provider")
	}

	svc := pipeline.NewService(pool, matcher, primary, fallback, pipeline.Options{
		QueryMaxChars: cfg.QueryMaxChars,
		Logger:        logger,
	})

	cleanup := func() {
		if err := cache.Close(); err != nil {
			logger.Warn().Err(err).Msg("embedding cache close failed")
		}
	}
	return svc, cleanup, nil
}
