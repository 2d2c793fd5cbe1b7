package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"horse.fit/outage-watch/internal/cli"
	"horse.fit/outage-watch/internal/logging"
	"horse.fit/outage-watch/internal/pipeline"
	"horse.fit/outage-watch/internal/posts"
)

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	oldFile := fs.String("old", "", "Path to the previous snapshot JSON")
	newFile := fs.String("new", "", "Path to the latest snapshot JSON")
	dryRun := fs.Bool("dry-run", false, "Extract and validate new posts without touching the database")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	oldRaw, err := loadJSONInput("", *oldFile, "old snapshot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}
	newRaw, err := loadJSONInput("", *newFile, "new snapshot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	extractor := newExtractor(cfg, logger)
	if extractor == nil {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is required for process")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var reconciler pipeline.Reconciler
	if !*dryRun {
		pool, ok := openPool(ctx, cfg, logger, "process")
		if !ok {
			return 1
		}
		defer pool.Close()
		reconciler = newReconciler(pool, cfg, logger)
	}

	service := pipeline.NewService(extractor, reconciler, logging.Component(logger, "pipeline"), pipeline.Options{
		ExtractTimeout: cfg.ExtractionTimeout,
		DryRun:         *dryRun,
	})

	report, err := service.ProcessJSON(ctx, oldRaw, newRaw)
	if err != nil {
		var malformed *posts.MalformedInputError
		if errors.As(err, &malformed) {
			fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
			return 2
		}
		logger.Error().Err(err).Msg("process run failed")
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}

	if err := printJSON(report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}

	logger.Info().
		Int("old_posts", report.OldPosts).
		Int("new_posts", report.NewPosts).
		Interface("counts", report.Counts).
		Bool("dry_run", *dryRun).
		Msg("process run completed")
	return 0
}
