package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookd/internal/tui/watch"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = printWatchHelp
	apiURL := fs.String("api-url", "http://127.0.0.1:8080", "hookd API URL")
	apiKey := fs.String("api-key", os.Getenv("HOOKD_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or HOOKD_API_KEY env var.")
		return 1
	}

	m := watch.New(strings.TrimRight(*apiURL, "/"), *apiKey)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func printWatchHelp() {
	fmt.Println("Usage: hookd watch [flags]")
	fmt.Println()
	fmt.Println("Live view of hook dispatches streamed from a running hookd API.")
	fmt.Println("Shows per-hook dispatch counts and per-library callout activity.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    hookd API URL (default: http://127.0.0.1:8080)")
	fmt.Println("  --api-key KEY    API bearer token (or HOOKD_API_KEY env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Select hook")
}
