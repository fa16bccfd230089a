package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattjoyce/hookd/internal/config"
	"github.com/mattjoyce/hookd/internal/log"
)

func runHooks(args []string) int {
	fs, configPath := newFlagSet("hooks")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup("warn", "text")

	rt, err := buildRuntime(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load libraries: %v\n", err)
		return 1
	}
	defer func() { _ = rt.close() }()

	table, err := rt.host.HookTable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read hook table: %v\n", err)
		return 1
	}

	names := libraryNames(cfg)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tHOOK\tCALLOUTS")
	for _, hook := range table {
		var callouts []string
		for i, lib := range hook.Callouts {
			for _, name := range lib {
				callouts = append(callouts, fmt.Sprintf("%s[%d]:%s", names[i], i, name))
			}
		}
		if len(callouts) == 0 {
			callouts = []string{"-"}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", hook.Index, hook.Name, strings.Join(callouts, ", "))
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

// runCheck validates the configuration and performs a dry load of every
// library so bad parameters are reported before start.
func runCheck(args []string) int {
	fs, configPath := newFlagSet("check")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}
	log.Setup("error", "text")

	rt, err := buildRuntime(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Libraries invalid: %v\n", err)
		return 1
	}
	if err := rt.close(); err != nil {
		fmt.Fprintf(os.Stderr, "Library unload failed: %v\n", err)
		return 1
	}

	integrity := "unverified (no .checksums)"
	if cfg.Verified {
		integrity = "verified"
	}
	fmt.Printf("Configuration valid: %s\n", cfg.Path)
	fmt.Printf("libraries: %d, extra hooks: %d, integrity: %s\n", len(cfg.Libraries), len(cfg.Hooks), integrity)
	return 0
}

func runConfigChecksum(args []string) int {
	fs, configPath := newFlagSet("checksum")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// Validate first so a broken file is never blessed.
	data, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config not readable: %v\n", err)
		return 1
	}
	cfg, err := config.Parse(data)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to record checksum: %v\n", err)
		return 1
	}

	path, err := config.GenerateChecksums(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write checksums: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s\n", path)
	return 0
}
