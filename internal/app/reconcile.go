package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/outage-watch/internal/cli"
	"horse.fit/outage-watch/internal/extraction"
	"horse.fit/outage-watch/internal/reconcile"
)

func runReconcile(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	payload := fs.String("payload", "", "Extracted record JSON")
	payloadFile := fs.String("payload-file", "", "Path to an extracted record JSON file")
	timeout := fs.Duration("timeout", 30*time.Second, "Reconciliation timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	raw, err := loadJSONInput(*payload, *payloadFile, "record")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}
	rec, err := extraction.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid record: %v\n", err)
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, ok := openPool(ctx, cfg, logger, "reconcile")
	if !ok {
		return 1
	}
	defer pool.Close()

	outcome, err := newReconciler(pool, cfg, logger).Reconcile(ctx, rec)
	if printErr := printJSON(outcome); printErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", printErr)
		return 1
	}

	switch outcome.Status {
	case reconcile.StatusParseError:
		fmt.Fprintf(os.Stderr, "Reconcile rejected record: %v\n", err)
		return 2
	case reconcile.StatusCreationFailed:
		fmt.Fprintf(os.Stderr, "Reconcile failed: %v\n", err)
		return 1
	}
	return 0
}
