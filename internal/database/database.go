// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package database implements the relational repository over embedded
// DuckDB: users, books, ratings, and the genre taxonomy.
//
// The read surface is intentionally narrow. Every query carries an explicit
// LIMIT and a statement timeout, and all calls flow through a circuit
// breaker so a struggling store degrades requests instead of hanging them.
// Breaker-open and connection failures surface as
// recommend.ErrRepositoryUnavailable; absent rows as recommend.ErrNotFound.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/mwhitten/bookrec/internal/metrics"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// Config holds relational store configuration.
type Config struct {
	// Path is the DuckDB database file. Empty means in-memory.
	Path string `json:"path" koanf:"path"`

	// Threads caps DuckDB's worker threads. Zero means NumCPU.
	Threads int `json:"threads" koanf:"threads"`

	// MaxMemory is DuckDB's memory ceiling, e.g. "1GB".
	MaxMemory string `json:"max_memory" koanf:"max_memory"`

	// QueryTimeout bounds each statement.
	QueryTimeout time.Duration `json:"query_timeout" koanf:"query_timeout"`

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit.
	BreakerFailureThreshold uint32 `json:"breaker_failure_threshold" koanf:"breaker_failure_threshold"`

	// BreakerTimeout is how long the circuit stays open before probing.
	BreakerTimeout time.Duration `json:"breaker_timeout" koanf:"breaker_timeout"`

	// MetricsRefreshInterval is how often book rating aggregates are
	// recomputed and pushed to the document store. Zero disables the job.
	MetricsRefreshInterval time.Duration `json:"metrics_refresh_interval" koanf:"metrics_refresh_interval"`

	// ProfileRefreshInterval is how often user preference profiles are
	// rebuilt from rating facts. Zero disables the job.
	ProfileRefreshInterval time.Duration `json:"profile_refresh_interval" koanf:"profile_refresh_interval"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Path:                    "bookrec.db",
		Threads:                 0,
		MaxMemory:               "1GB",
		QueryTimeout:            30 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
		MetricsRefreshInterval:  6 * time.Hour,
		ProfileRefreshInterval:  6 * time.Hour,
	}
}

// DB is the DuckDB-backed relational repository.
type DB struct {
	conn    *sql.DB
	cfg     Config
	breaker *gobreaker.CircuitBreaker[any]
	logger  zerolog.Logger
}

var _ recommend.RelationalRepository = (*DB)(nil)

// New opens the database, verifies connectivity, configures the connection
// pool, and arms the circuit breaker.
func New(cfg Config, logger zerolog.Logger) (*DB, error) {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	conn, err := sql.Open("duckdb", connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("component", "database").Logger(),
	}
	db.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "relational-store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerState.Set(1)
			} else {
				metrics.CircuitBreakerState.Set(0)
			}
			db.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return db, nil
}

// connString builds the DuckDB connection string.
func connString(cfg Config) string {
	if cfg.Path == "" {
		return ""
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}
	return fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, maxMemory)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// execute runs one named query through the circuit breaker with the
// configured statement timeout. Domain absence (recommend.ErrNotFound)
// passes through without counting as a breaker failure; everything else is
// an infrastructure failure and maps to ErrRepositoryUnavailable.
func execute[T any](ctx context.Context, db *DB, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var notFound error

	start := time.Now()
	res, err := db.breaker.Execute(func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, db.cfg.QueryTimeout)
		defer cancel()

		v, err := fn(qctx)
		if err != nil {
			if errors.Is(err, recommend.ErrNotFound) {
				notFound = err
				return nil, nil
			}
			return nil, err
		}
		return v, nil
	})
	metrics.ObserveRelationalQuery(name, time.Since(start), err)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, fmt.Errorf("%s: circuit open: %w", name, recommend.ErrRepositoryUnavailable)
	case err != nil:
		return zero, fmt.Errorf("%s: %w: %v", name, recommend.ErrRepositoryUnavailable, err)
	case notFound != nil:
		return zero, notFound
	}

	out, _ := res.(T)
	return out, nil
}

// closeQuietly closes a resource ignoring the error. For cleanup paths
// where the original error is already being reported.
func closeQuietly(c interface{ Close() error }) {
	_ = c.Close()
}

// placeholders returns a "?,?,..." list of length n.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// splitPipe splits a pipe-delimited aggregate column, dropping empties.
func splitPipe(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := parts[:0:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
