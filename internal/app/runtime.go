package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/outage-watch/internal/cli"
	"horse.fit/outage-watch/internal/config"
	"horse.fit/outage-watch/internal/db"
	"horse.fit/outage-watch/internal/extraction"
	"horse.fit/outage-watch/internal/logging"
	"horse.fit/outage-watch/internal/reconcile"
)

// loadRuntime loads the env file, config and logger shared by database commands.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, bool) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), false
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), false
	}
	return cfg, logger, true
}

// stderrLogger is used by commands that run without config.
func stderrLogger(level string) zerolog.Logger {
	logger, err := logging.NewWithWriter(os.Stderr, "local", level)
	if err != nil {
		return zerolog.Nop()
	}
	return logger
}

func newReconciler(pool *db.Pool, cfg *config.Config, logger zerolog.Logger) *reconcile.Reconciler {
	return reconcile.NewReconciler(pool, logging.Component(logger, "reconcile"), reconcile.Options{
		Location: cfg.Location(),
	})
}

func newExtractor(cfg *config.Config, logger zerolog.Logger) extraction.Extractor {
	if !cfg.ExtractionEnabled() {
		return nil
	}
	return extraction.NewOpenAIExtractor(extraction.OpenAIOptions{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
		MaxImages: cfg.ExtractionMaxImages,
	}, logging.Component(logger, "extraction"))
}

func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger, command string) (*db.Pool, bool) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("command", command).Msg("failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, false
	}
	return pool, true
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
