package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/technus/internal/cli"
	"horse.fit/technus/internal/pipeline"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	horizonDays := fs.Int("horizon-days", 0, "Retention horizon in days (default: RETENTION_DAYS)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sweep does not accept positional arguments")
		return 2
	}
	if *horizonDays < 0 {
		fmt.Fprintln(os.Stderr, "--horizon-days must be >= 0")
		return 2
	}

	ctx, cancel, pool, cfg, logger, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	horizon := *horizonDays
	if horizon == 0 {
		horizon = cfg.RetentionDays
	}

	// the sweeper only touches the store
	svc := pipeline.NewService(pool, nil, nil, nil, pipeline.Options{Logger: logger})

	deleted, err := svc.Sweep(ctx, horizon)
	if err != nil {
		logger.Error().Err(err).Msg("retention sweep failed")
		fmt.Fprintf(os.Stderr, "Retention sweep failed: %v\n", err)
		return 1
	}

	fmt.Printf("Retention sweep complete: horizon_days=%d deleted=%d\n", horizon, deleted)
	return 0
}
