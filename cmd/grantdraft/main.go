// Command grantdraft drafts, refines and manages grant application narratives.
//
// Usage:
//
//	grantdraft <command> [flags]
//
// Configuration comes from the environment (LLM_API_KEY, LLM_MODEL,
// STORE_DRIVER, DATA_DIR, ...). Results are printed as JSON on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tyloni/oregon-grant-automation/internal/core"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"generate", "Draft every section for a grant and organization", runGenerate},
	{"refine", "Rewrite one section from feedback", runRefine},
	{"edit", "Replace the text of one section", runEdit},
	{"status", "Change an application's status", runStatus},
	{"view", "Show an application", runView},
	{"list", "List applications, newest first", runList},
	{"delete", "Delete an application", runDelete},
	{"suggest", "Suggest text for a personalization field", runSuggest},
	{"sections", "List the catalog sections", runSections},
	{"grants", "List stored grants", runGrants},
	{"seed", "Load grant records from a YAML file", runSeed},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage()
		return 2
	}

	cmd, ok := findCommand(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return 2
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := core.NewLoggerFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	if syncer, ok := logger.(interface{ Sync() error }); ok {
		defer func() { _ = syncer.Sync() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, usageErr)
			return 2
		}
		logger.Error("Command failed", "command", cmd.name, "error", err)
		fmt.Fprintln(os.Stderr, core.UserMessage(err))
		return 1
	}
	return 0
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: grantdraft <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'grantdraft <command> -h' for command flags.")
}
