// Package store is the query-execution layer over the Pagila database.
//
// Production deployments run against Postgres through the pgx stdlib driver;
// DuckDB is supported as an alternate driver for local snapshots and is the
// backend used by the test suite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MMontoya03/mcp-database/internal/metrics"
)

const (
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"

	defaultPoolSize        = 20
	defaultConnMaxLifetime = time.Hour
	defaultPingTimeout     = 30 * time.Second
)

// Result is one executed statement's output: ordered column names and rows.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs a single read statement against the store.
type Executor interface {
	Execute(ctx context.Context, stmt string, args ...any) (*Result, error)
}

// ExecutionError wraps any backend failure (bad SQL, unknown column,
// connection loss). It is never retried; each call surfaces it to its own
// caller only.
type ExecutionError struct {
	Stmt string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute statement: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

type Config struct {
	Logger *slog.Logger

	Driver string // DriverPostgres or DriverDuckDB
	DSN    string

	// PoolSize bounds open connections (the Pagila deployment default is 20,
	// no overflow). Connections are recycled after ConnMaxLifetime.
	PoolSize        int
	ConnMaxLifetime time.Duration

	// PingTimeout bounds the initial connectivity check in Open.
	PingTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverDuckDB {
		return fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.Driver == DriverPostgres && cfg.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}
	return nil
}

// DB implements Executor over database/sql with a bounded connection pool.
type DB struct {
	log *slog.Logger
	sql *sql.DB
}

// Open opens the store and verifies connectivity, retrying the initial ping
// with exponential backoff until cfg.PingTimeout elapses. The caller owns the
// lifecycle: open once at process start, Close on shutdown.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(min(cfg.PoolSize, 5))
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.PingTimeout
	ping := func() error { return db.PingContext(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg.Logger.Debug("store: database opened", "driver", cfg.Driver, "pool_size", cfg.PoolSize)
	return &DB{log: cfg.Logger, sql: db}, nil
}

// Execute runs one statement on a connection scoped to this call. The
// connection is released on every path, including cancellation and failure.
func (d *DB) Execute(ctx context.Context, stmt string, args ...any) (*Result, error) {
	start := time.Now()
	res, err := d.execute(ctx, stmt, args...)
	metrics.DatabaseQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DatabaseQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.DatabaseQueriesTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (d *DB) execute(ctx context.Context, stmt string, args ...any) (*Result, error) {
	conn, err := d.sql.Conn(ctx)
	if err != nil {
		return nil, &ExecutionError{Stmt: stmt, Err: fmt.Errorf("failed to get connection: %w", err)}
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &ExecutionError{Stmt: stmt, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Stmt: stmt, Err: fmt.Errorf("failed to get columns: %w", err)}
	}

	res := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, &ExecutionError{Stmt: stmt, Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Stmt: stmt, Err: err}
	}

	return res, nil
}

// Ready reports whether the store is reachable. Used by the readiness probe.
func (d *DB) Ready(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.sql.Close()
}
