package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/outage-watch/internal/extraction"
	"horse.fit/outage-watch/internal/posts"
	"horse.fit/outage-watch/internal/reconcile"
)

// Per-post statuses that happen before reconciliation. Reconciled posts carry
// the reconcile.Status value instead.
const (
	StatusExtractionFailed  = "extraction_failed"
	StatusInvalidExtraction = "invalid_extraction"
	StatusExtracted         = "extracted"
)

const defaultExtractTimeout = 60 * time.Second

type Reconciler interface {
	Reconcile(ctx context.Context, rec extraction.Record) (reconcile.Outcome, error)
}

type Options struct {
	// ExtractTimeout bounds each extractor call.
	ExtractTimeout time.Duration
	// DryRun extracts and validates posts without reconciling them.
	DryRun bool
}

type Service struct {
	extractor      extraction.Extractor
	reconciler     Reconciler
	logger         zerolog.Logger
	extractTimeout time.Duration
	dryRun         bool
}

type PostResult struct {
	Fingerprint  string             `json:"fingerprint"`
	Status       string             `json:"status"`
	RecordID     *int64             `json:"record_id,omitempty"`
	Preview      *extraction.Record `json:"preview,omitempty"`
	SkippedLinks int                `json:"skipped_links,omitempty"`
	Error        string             `json:"error,omitempty"`
}

type Report struct {
	OldPosts int            `json:"old_posts"`
	NewPosts int            `json:"new_posts"`
	Results  []PostResult   `json:"results"`
	Counts   map[string]int `json:"counts"`
}

func NewService(extractor extraction.Extractor, reconciler Reconciler, logger zerolog.Logger, opts Options) *Service {
	timeout := opts.ExtractTimeout
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	return &Service{
		extractor:      extractor,
		reconciler:     reconciler,
		logger:         logger,
		extractTimeout: timeout,
		dryRun:         opts.DryRun,
	}
}

// ProcessJSON parses both snapshots and runs Process on them. A malformed
// snapshot yields *posts.MalformedInputError.
func (s *Service) ProcessJSON(ctx context.Context, oldRaw, newRaw json.RawMessage) (Report, error) {
	oldPosts, err := posts.ParseSnapshot(oldRaw, "old", s.logger)
	if err != nil {
		return Report{}, err
	}
	newPosts, err := posts.ParseSnapshot(newRaw, "new", s.logger)
	if err != nil {
		return Report{}, err
	}
	return s.Process(ctx, oldPosts, newPosts)
}

// Process handles every post in newPosts that is absent from oldPosts, one at
// a time. Per-post failures are recorded in the report; only a cancelled
// context stops the run early.
func (s *Service) Process(ctx context.Context, oldPosts, newPosts []posts.Post) (Report, error) {
	if s == nil || s.extractor == nil || (!s.dryRun && s.reconciler == nil) {
		return Report{}, fmt.Errorf("pipeline service is not initialized")
	}

	fresh := posts.FindNewPosts(oldPosts, newPosts)
	report := Report{
		OldPosts: len(oldPosts),
		NewPosts: len(fresh),
		Results:  make([]PostResult, 0, len(fresh)),
		Counts:   make(map[string]int),
	}

	s.logger.Info().
		Int("old_posts", len(oldPosts)).
		Int("scraped_posts", len(newPosts)).
		Int("new_posts", len(fresh)).
		Msg("processing new posts")

	for _, post := range fresh {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := s.processOne(ctx, post)
		report.Results = append(report.Results, result)
		report.Counts[result.Status]++
	}

	return report, nil
}

func (s *Service) processOne(ctx context.Context, post posts.Post) PostResult {
	result := PostResult{Fingerprint: posts.Fingerprint(post)}
	log := s.logger.With().Str("fingerprint", result.Fingerprint).Logger()

	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	raw, err := s.extractor.Extract(extractCtx, post)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("extraction failed")
		result.Status = StatusExtractionFailed
		result.Error = err.Error()
		return result
	}

	rec, err := extraction.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("extracted record rejected")
		result.Status = StatusInvalidExtraction
		result.Error = err.Error()
		return result
	}

	if s.dryRun {
		result.Status = StatusExtracted
		result.Preview = &rec
		return result
	}

	outcome, err := s.reconciler.Reconcile(ctx, rec)
	result.Status = string(outcome.Status)
	result.RecordID = outcome.RecordID
	result.Preview = &outcome.Preview
	result.SkippedLinks = outcome.SkippedLinks
	if err != nil {
		log.Error().Err(err).Str("status", result.Status).Msg("reconciliation failed")
		result.Error = err.Error()
	}
	return result
}
