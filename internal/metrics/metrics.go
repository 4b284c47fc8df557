// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package metrics exposes Prometheus instrumentation for Bookrec:
// recommendation throughput and latency, per-strategy outcomes, cache
// efficiency, store query performance, and HTTP endpoint timings.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation engine metrics

	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_recommendation_requests_total",
			Help: "Total recommendation requests by outcome",
		},
		[]string{"status"}, // "ok", "invalid", "not_found", "unavailable", "error"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookrec_recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ColdStartRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_cold_start_requests_total",
			Help: "Recommendation requests served through the cold-start path",
		},
	)

	StrategyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_strategy_runs_total",
			Help: "Candidate generator runs by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "ok", "empty", "error", "timeout"
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_strategy_duration_seconds",
			Help:    "Candidate generator latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Recommendation cache metrics

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_cache_hits_total",
			Help: "Recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_cache_misses_total",
			Help: "Recommendation cache misses (absent or expired)",
		},
	)

	CacheSweptRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_cache_swept_records_total",
			Help: "Expired recommendation records removed by the sweeper",
		},
	)

	// Store metrics

	RelationalQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_relational_query_duration_seconds",
			Help:    "Duration of relational store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	RelationalQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_relational_query_errors_total",
			Help: "Relational store query errors",
		},
		[]string{"query"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookrec_relational_breaker_open",
			Help: "1 when the relational store circuit breaker is open",
		},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveRelationalQuery records one relational store query.
func ObserveRelationalQuery(query string, elapsed time.Duration, err error) {
	RelationalQueryDuration.WithLabelValues(query).Observe(elapsed.Seconds())
	if err != nil {
		RelationalQueryErrors.WithLabelValues(query).Inc()
	}
}
