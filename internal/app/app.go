package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "preferences":
		return runPreferences(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "technus CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  technus <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health       Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  fetch        Run one fetch cycle over all stored keyword preferences")
	fmt.Fprintln(os.Stderr, "  sweep        Delete articles past the retention horizon")
	fmt.Fprintln(os.Stderr, "  preferences  Import or list keyword preferences")
	fmt.Fprintln(os.Stderr, "  articles     List stored articles in a date window")
	fmt.Fprintln(os.Stderr, "  serve        Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"technus <command> -h\" for command-specific flags.")
}
