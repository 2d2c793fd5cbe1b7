package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/outage-watch/internal/db"
	"horse.fit/outage-watch/internal/jobs"
	"horse.fit/outage-watch/internal/pipeline"
	"horse.fit/outage-watch/internal/posts"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
	maxBodySize     = "10M"
)

// RecordStore is the read side of the persistence layer.
type RecordStore interface {
	Ping(ctx context.Context) error
	ListInterruptions(ctx context.Context, opts db.InterruptionListOptions) ([]db.InterruptionSummary, error)
	GetInterruption(ctx context.Context, id int64) (*db.InterruptionDetail, error)
}

// Processor runs a snapshot pair through extraction and reconciliation.
type Processor interface {
	Process(ctx context.Context, oldPosts, newPosts []posts.Post) (pipeline.Report, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	// Location interprets from/to query dates.
	Location *time.Location
}

type Dependencies struct {
	Records    RecordStore
	Reconciler pipeline.Reconciler
	// Processor is nil when no extractor is configured; job routes then answer 503.
	Processor Processor
	Jobs      *jobs.Registry
}

type Server struct {
	records    RecordStore
	reconciler pipeline.Reconciler
	processor  Processor
	jobs       *jobs.Registry
	logger     zerolog.Logger
	opts       Options
	jobCtx     context.Context
}

func NewServer(deps Dependencies, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	location := opts.Location
	if location == nil {
		location = time.UTC
	}
	registry := deps.Jobs
	if registry == nil {
		registry = jobs.NewRegistry(logger, jobs.Options{})
	}

	return &Server{
		records:    deps.Records,
		reconciler: deps.Reconciler,
		processor:  deps.Processor,
		jobs:       registry,
		logger:     logger,
		jobCtx:     context.Background(),
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  opts.AllowedOrigins,
			Location:        location,
		},
	}
}

// Handler builds the echo instance with middleware and every API route.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	allowOrigins := s.opts.AllowedOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			message := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				message = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(message)
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/posts/diff", s.handleDiffPosts)
	api.POST("/interruptions/reconcile", s.handleReconcile)
	api.GET("/interruptions", s.handleListInterruptions)
	api.GET("/interruptions/:id", s.handleGetInterruption)
	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleDeleteJob)

	return e
}

// Start serves until ctx is cancelled, then shuts down and waits for
// background jobs. Jobs receive ctx so they stop with the server.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.records == nil || s.reconciler == nil {
		return fmt.Errorf("server is not initialized")
	}
	s.jobCtx = ctx

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("outage-watch api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.jobs.Wait()
	s.logger.Info().Msg("outage-watch api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled api error")
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseDateFilter(raw string, loc *time.Location) (time.Time, error) {
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
