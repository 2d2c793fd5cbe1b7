package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/outage-watch/internal/db"
	"horse.fit/outage-watch/internal/extraction"
	"horse.fit/outage-watch/internal/jobs"
	"horse.fit/outage-watch/internal/posts"
	"horse.fit/outage-watch/internal/reconcile"
)

type snapshotPair struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

func (s *Server) handleHealth(c echo.Context) error {
	database := "ok"
	if s.records == nil {
		database = "unconfigured"
	} else if err := s.records.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("database ping failed")
		return errorWithStatus(c, http.StatusServiceUnavailable, "Database unavailable", map[string]any{
			"database": "down",
		})
	}
	return success(c, map[string]any{
		"service":    "outage-watch",
		"database":   database,
		"extraction": s.processor != nil,
		"time":       time.Now().UTC(),
	})
}

func (s *Server) handleDiffPosts(c echo.Context) error {
	pair, err := decodeSnapshotPair(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	items, err := posts.FindNewPostsJSON(pair.Old, pair.New, s.logger)
	if err != nil {
		return failMalformed(c, err)
	}
	return success(c, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleReconcile(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not read request body"})
	}

	rec, err := extraction.Decode(body)
	if err != nil {
		if errors.Is(err, extraction.ErrInvalidRecord) {
			return fail(c, http.StatusBadRequest, "Invalid extracted record", map[string]any{
				"error": err.Error(),
			})
		}
		s.logger.Error().Err(err).Msg("decode extracted record failed")
		return internalError(c, "Failed to validate record")
	}

	outcome, err := s.reconciler.Reconcile(c.Request().Context(), rec)
	if err != nil {
		var parseErr *reconcile.DateTimeParseError
		if errors.As(err, &parseErr) {
			return fail(c, http.StatusUnprocessableEntity, parseErr.Error(), outcome)
		}
		s.logger.Error().Err(err).Str("status", string(outcome.Status)).Msg("reconcile failed")
		return errorWithStatus(c, http.StatusInternalServerError, "Failed to store interruption record", outcome)
	}

	if outcome.Status == reconcile.StatusCreated {
		return successWithStatus(c, http.StatusCreated, outcome)
	}
	return success(c, outcome)
}

func (s *Server) handleListInterruptions(c echo.Context) error {
	fieldErrors := map[string]string{}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		fieldErrors["limit"] = err.Error()
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		fieldErrors["offset"] = err.Error()
	}
	from, err := parseDateFilter(c.QueryParam("from"), s.opts.Location)
	if err != nil {
		fieldErrors["from"] = err.Error()
	}
	to, err := parseDateFilter(c.QueryParam("to"), s.opts.Location)
	if err != nil {
		fieldErrors["to"] = err.Error()
	}
	if len(fieldErrors) == 0 && !from.IsZero() && !to.IsZero() && to.Before(from) {
		fieldErrors["to"] = "must not be before from"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	items, err := s.records.ListInterruptions(c.Request().Context(), db.InterruptionListOptions{
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("list interruptions failed")
		return internalError(c, "Failed to load interruptions")
	}
	return success(c, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetInterruption(c echo.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return failValidation(c, map[string]string{"id": "must be a positive integer"})
	}

	detail, err := s.records.GetInterruption(c.Request().Context(), id)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Interruption not found")
		}
		s.logger.Error().Err(err).Int64("record_id", id).Msg("get interruption failed")
		return internalError(c, "Failed to load interruption")
	}
	return success(c, detail)
}

func (s *Server) handleCreateJob(c echo.Context) error {
	if s.processor == nil {
		return errorWithStatus(c, http.StatusServiceUnavailable, "Extraction is not configured", nil)
	}

	pair, err := decodeSnapshotPair(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	oldPosts, err := posts.ParseSnapshot(pair.Old, "old", s.logger)
	if err != nil {
		return failMalformed(c, err)
	}
	newPosts, err := posts.ParseSnapshot(pair.New, "new", s.logger)
	if err != nil {
		return failMalformed(c, err)
	}

	job := s.jobs.Start(s.jobCtx, "process", func(ctx context.Context, progress func(string)) (any, error) {
		progress("processing " + strconv.Itoa(len(newPosts)) + " scraped posts")
		report, err := s.processor.Process(ctx, oldPosts, newPosts)
		if err != nil {
			return report, err
		}
		progress("processed " + strconv.Itoa(report.NewPosts) + " new posts")
		return report, nil
	})
	return successWithStatus(c, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(c echo.Context) error {
	items := s.jobs.List()
	return success(c, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		return failNotFound(c, "Job not found")
	}
	return success(c, job)
}

func (s *Server) handleDeleteJob(c echo.Context) error {
	err := s.jobs.Delete(c.Param("id"))
	switch {
	case err == nil:
		return success(c, map[string]any{"deleted": c.Param("id")})
	case errors.Is(err, jobs.ErrJobNotFound):
		return failNotFound(c, "Job not found")
	case errors.Is(err, jobs.ErrJobRunning):
		return fail(c, http.StatusConflict, "Job is still running", nil)
	default:
		return internalError(c, "Failed to delete job")
	}
}

func decodeSnapshotPair(body io.Reader) (snapshotPair, error) {
	var pair snapshotPair
	if err := json.NewDecoder(body).Decode(&pair); err != nil {
		return snapshotPair{}, errors.New("must be a JSON object with old and new snapshots")
	}
	return pair, nil
}

func failMalformed(c echo.Context, err error) error {
	var malformed *posts.MalformedInputError
	if errors.As(err, &malformed) {
		return fail(c, http.StatusBadRequest, malformed.Error(), map[string]any{
			"side": malformed.Side,
		})
	}
	return fail(c, http.StatusBadRequest, err.Error(), nil)
}
