// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiredSweeper deletes expired documents and reports how many were
// removed. Satisfied by the document store's DeleteExpired.
type ExpiredSweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// SweeperService periodically removes expired recommendation records
// from the document store. Badger only reclaims TTL-less keys we expire
// ourselves, so without the sweep stale records would accumulate until
// read-side filtering is the only thing hiding them.
type SweeperService struct {
	store    ExpiredSweeper
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeperService creates the cache sweeper.
func NewSweeperService(store ExpiredSweeper, interval time.Duration, logger zerolog.Logger) *SweeperService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweeperService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "cache-sweeper").Logger(),
	}
}

// Serve implements suture.Service. A failed sweep is logged and retried
// on the next tick; it never crashes the service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := s.store.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("cache sweep failed")
				continue
			}
			if swept > 0 {
				s.logger.Debug().Int("records", swept).Msg("swept expired recommendations")
			}
		}
	}
}

// String identifies the service in suture's event log.
func (s *SweeperService) String() string { return "cache-sweeper" }
