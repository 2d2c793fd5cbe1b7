package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/outage-watch/internal/config"
)

var (
	ErrNoRows = sql.ErrNoRows

	errPoolNotInitialized = errors.New("database pool is not initialized")
)

const (
	defaultMaxConns = 8
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// Pool runs every statement in autocommit mode. The reconciler orders its
// writes so that nothing is written before the main record row succeeds.
type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	limits := connectionLimits(cfg.DBMinConns, cfg.DBMaxConns)
	sqlDB.SetMaxOpenConns(limits.maxOpen)
	sqlDB.SetMaxIdleConns(limits.maxIdle)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	pool := &Pool{gdb: gdb, sqlDB: sqlDB}
	if err := pool.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}

	return pool, nil
}

type connLimits struct {
	maxOpen int
	maxIdle int
}

// connectionLimits maps OW_DB_MIN_CONNS/OW_DB_MAX_CONNS onto database/sql
// settings. Idle connections stay between 1 and maxOpen.
func connectionLimits(minConns, maxConns int32) connLimits {
	maxOpen := int(maxConns)
	if maxOpen <= 0 {
		maxOpen = defaultMaxConns
	}
	return connLimits{
		maxOpen: maxOpen,
		maxIdle: max(1, min(int(minConns), maxOpen)),
	}
}

func (p *Pool) session(ctx context.Context) (*gorm.DB, error) {
	if p == nil || p.gdb == nil {
		return nil, errPoolNotInitialized
	}
	return p.gdb.WithContext(ctx), nil
}

// scanOne runs query and scans its first row into dest. It returns ErrNoRows
// when the query yields nothing, including INSERT ... ON CONFLICT DO NOTHING
// RETURNING that skipped the insert.
func (p *Pool) scanOne(ctx context.Context, query string, args []any, dest ...any) error {
	session, err := p.session(ctx)
	if err != nil {
		return err
	}
	row := session.Raw(query, args...).Row()
	if row == nil {
		return fmt.Errorf("query produced no row handle")
	}
	return row.Scan(dest...)
}

// query runs a multi-row SELECT; callers must close the returned rows.
func (p *Pool) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	session, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	return session.Raw(query, args...).Rows()
}

// exec runs a statement and reports how many rows it touched.
func (p *Pool) exec(ctx context.Context, query string, args ...any) (int64, error) {
	session, err := p.session(ctx)
	if err != nil {
		return 0, err
	}
	res := session.Exec(query, args...)
	return res.RowsAffected, res.Error
}

// Ping checks connectivity; used by the health command and endpoint.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errPoolNotInitialized
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent", "disabled":
		return logger.Silent
	}
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return logger.Warn
	}
	return logger.Error
}
