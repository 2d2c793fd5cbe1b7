package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/outage-watch/internal/cli"
	"horse.fit/outage-watch/internal/httpapi"
	"horse.fit/outage-watch/internal/jobs"
	"horse.fit/outage-watch/internal/logging"
	"horse.fit/outage-watch/internal/pipeline"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "HTTP listen host")
	port := fs.Int("port", 8090, "HTTP listen port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "Invalid --port: must be between 1 and 65535")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, ok := openPool(ctx, cfg, logger, "serve")
	if !ok {
		return 1
	}
	defer pool.Close()

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

	reconciler := newReconciler(pool, cfg, logger)

	var processor httpapi.Processor
	if extractor := newExtractor(cfg, logger); extractor != nil {
		processor = pipeline.NewService(extractor, reconciler, logging.Component(logger, "pipeline"), pipeline.Options{
			ExtractTimeout: cfg.ExtractionTimeout,
		})
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set; processing jobs are disabled")
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Records:    pool,
		Reconciler: reconciler,
		Processor:  processor,
		Jobs:       jobs.NewRegistry(logging.Component(logger, "jobs"), jobs.Options{}),
	}, logging.Component(logger, "httpapi"), httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowedOrigins:  cfg.CORSAllowedOriginsList(),
		Location:        cfg.Location(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
