package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/outage-watch/internal/cli"
	"horse.fit/outage-watch/internal/db"
)

func runRecords(args []string) int {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	id := fs.Int64("id", 0, "Show one interruption with its associations")
	from := fs.String("from", "", "Earliest interruption date (YYYY-MM-DD)")
	to := fs.String("to", "", "Latest interruption date (YYYY-MM-DD)")
	limit := fs.Int("limit", 25, "Maximum records to list")
	offset := fs.Int("offset", 0, "Records to skip")
	timeout := fs.Duration("timeout", 15*time.Second, "Query timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 1 || *limit > 200 {
		fmt.Fprintln(os.Stderr, "Invalid --limit: must be between 1 and 200")
		return 2
	}
	if *offset < 0 {
		fmt.Fprintln(os.Stderr, "Invalid --offset: must be >= 0")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	opts := db.InterruptionListOptions{Limit: *limit, Offset: *offset}
	var err error
	if opts.From, err = parseDayFlag(*from, cfg.Location()); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --from: %v\n", err)
		return 2
	}
	if opts.To, err = parseDayFlag(*to, cfg.Location()); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --to: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, ok := openPool(ctx, cfg, logger, "records")
	if !ok {
		return 1
	}
	defer pool.Close()

	var output any
	if *id > 0 {
		detail, err := pool.GetInterruption(ctx, *id)
		if err != nil {
			if db.IsNoRows(err) {
				fmt.Fprintf(os.Stderr, "Interruption %d not found\n", *id)
				return 1
			}
			logger.Error().Err(err).Int64("id", *id).Msg("failed to load interruption")
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			return 1
		}
		output = detail
	} else {
		items, err := pool.ListInterruptions(ctx, opts)
		if err != nil {
			logger.Error().Err(err).Msg("failed to list interruptions")
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			return 1
		}
		if items == nil {
			items = []db.InterruptionSummary{}
		}
		output = items
	}

	if err := printJSON(output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func parseDayFlag(raw string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation("2006-01-02", trimmed, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	return day, nil
}
