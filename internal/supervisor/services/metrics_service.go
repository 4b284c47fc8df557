// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
)

// MetricsSource recomputes per-book rating statistics. Satisfied by the
// relational store's BookRatingAggregates.
type MetricsSource interface {
	BookRatingAggregates(ctx context.Context) ([]models.BookMetrics, error)
}

// MetricsSink persists book metrics documents. Satisfied by the document
// store's PutBookMetrics.
type MetricsSink interface {
	PutBookMetrics(ctx context.Context, docs []*models.BookMetrics) error
}

// MetricsRefreshService periodically recomputes rating aggregates from
// the relational store and pushes them into the document store, keeping
// popularity scores off the request path. The first refresh runs at
// startup so a fresh deployment does not serve an empty metrics set for
// a full interval.
type MetricsRefreshService struct {
	source   MetricsSource
	sink     MetricsSink
	interval time.Duration
	logger   zerolog.Logger
}

// NewMetricsRefreshService creates the refresh job.
func NewMetricsRefreshService(source MetricsSource, sink MetricsSink, interval time.Duration, logger zerolog.Logger) *MetricsRefreshService {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &MetricsRefreshService{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger.With().Str("component", "metrics-refresh").Logger(),
	}
}

// Serve implements suture.Service. A failed refresh is logged and
// retried on the next tick.
func (s *MetricsRefreshService) Serve(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("initial metrics refresh failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("metrics refresh failed")
			}
		}
	}
}

func (s *MetricsRefreshService) refresh(ctx context.Context) error {
	start := time.Now()
	aggregates, err := s.source.BookRatingAggregates(ctx)
	if err != nil {
		return err
	}

	docs := make([]*models.BookMetrics, len(aggregates))
	for i := range aggregates {
		aggregates[i].UpdatedAt = start
		docs[i] = &aggregates[i]
	}
	if err := s.sink.PutBookMetrics(ctx, docs); err != nil {
		return err
	}

	s.logger.Info().
		Int("books", len(docs)).
		Dur("elapsed", time.Since(start)).
		Msg("book metrics refreshed")
	return nil
}

// String identifies the service in suture's event log.
func (s *MetricsRefreshService) String() string { return "metrics-refresh" }
