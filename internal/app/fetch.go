package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/technus/internal/cli"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "fetch does not accept positional arguments")
		return 2
	}

	ctx, cancel, pool, cfg, logger, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	svc, cleanup, err := buildService(cfg, logger, pool)
	if err != nil {
		logger.Error().Err(err).Msg("fetch pipeline construction failed")
		fmt.Fprintf(os.Stderr, "Failed to build fetch pipeline: %v\n", err)
		return 1
	}
	defer cleanup()

	result, err := svc.RunFetchCycle(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("fetch cycle failed")
		fmt.Fprintf(os.Stderr, "Fetch cycle failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"Fetch cycle complete: batches=%d failed=%d fetched=%d saved=%d merged=%d\n",
		result.Batches, result.BatchesFailed, result.Fetched, result.Saved, result.Merged,
	)
	return 0
}
