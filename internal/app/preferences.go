package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/technus/internal/cli"
	"horse.fit/technus/internal/db"
	prefschema "horse.fit/technus/schema"
)

func runPreferences(args []string) int {
	if len(args) == 0 {
		printPreferencesUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printPreferencesUsage()
		return 0
	case "import":
		return runPreferencesImport(args[1:])
	case "list":
		return runPreferencesList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown preferences subcommand: %s\n\n", args[0])
		printPreferencesUsage()
		return 2
	}
}

func printPreferencesUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  technus preferences import --file <payload.json>")
	fmt.Fprintln(os.Stderr, "  technus preferences list [--user <id>] [--format table|json]")
}

func runPreferencesImport(args []string) int {
	fs := flag.NewFlagSet("preferences import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	file := fs.String("file", "", "Path to the preferences JSON payload")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 2
	}

	parsed, err := prefschema.ValidatePreferencesPayload(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid preferences payload: %v\n", err)
		return 2
	}

	ctx, cancel, pool, _, logger, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	inserted, err := pool.ReplacePreferences(ctx, parsed.UserID, db.CategorizedKeywords(parsed.Categorized()))
	if err != nil {
		logger.Error().Err(err).Str("user_id", parsed.UserID).Msg("preferences import failed")
		fmt.Fprintf(os.Stderr, "Failed to import preferences: %v\n", err)
		return 1
	}

	logger.Info().Str("user_id", parsed.UserID).Int64("inserted", inserted).Msg("preferences replaced")
	fmt.Printf("Preferences replaced for %s: %d keywords stored\n", parsed.UserID, inserted)
	return 0
}

func runPreferencesList(args []string) int {
	fs := flag.NewFlagSet("preferences list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	user := fs.String("user", "", "Limit to one user (default: distinct keyword union across users)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, _, _, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	if strings.TrimSpace(*user) != "" {
		items, err := pool.ListPreferences(ctx, *user)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to query preferences: %v\n", err)
			return 1
		}
		if outputFormat == outputFormatJSON {
			if err := printJSON(items); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
				return 1
			}
			return 0
		}
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{item.UserID, item.Category, item.Keyword})
		}
		if err := writeTable([]string{"user_id", "category", "keyword"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
		return 0
	}

	keywords, err := pool.CollectKeywords(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to collect keywords: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(keywords); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	for _, keyword := range keywords {
		fmt.Println(keyword)
	}
	return 0
}
