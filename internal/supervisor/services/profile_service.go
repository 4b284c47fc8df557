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

// ProfileSource rebuilds preference documents from rating facts.
// Satisfied by the relational store's UserProfileAggregates.
type ProfileSource interface {
	UserProfileAggregates(ctx context.Context) ([]models.UserProfile, error)
}

// ProfileSink persists preference documents. Satisfied by the document
// store's PutUserProfile.
type ProfileSink interface {
	PutUserProfile(ctx context.Context, profile *models.UserProfile) error
}

// ProfileRefreshService periodically rebuilds user preference profiles
// from the relational store and pushes them into the document store.
// Without it every user stays cold forever: the engine treats a missing
// profile as a cold-start signal, so the personalized strategies only
// run for users this job has profiled. Primed at startup like the
// metrics refresh.
type ProfileRefreshService struct {
	source   ProfileSource
	sink     ProfileSink
	interval time.Duration
	logger   zerolog.Logger
}

// NewProfileRefreshService creates the refresh job.
func NewProfileRefreshService(source ProfileSource, sink ProfileSink, interval time.Duration, logger zerolog.Logger) *ProfileRefreshService {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &ProfileRefreshService{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger.With().Str("component", "profile-refresh").Logger(),
	}
}

// Serve implements suture.Service. A failed refresh is logged and
// retried on the next tick.
func (s *ProfileRefreshService) Serve(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("initial profile refresh failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("profile refresh failed")
			}
		}
	}
}

func (s *ProfileRefreshService) refresh(ctx context.Context) error {
	start := time.Now()
	profiles, err := s.source.UserProfileAggregates(ctx)
	if err != nil {
		return err
	}

	for i := range profiles {
		profiles[i].UpdatedAt = start
		if err := s.sink.PutUserProfile(ctx, &profiles[i]); err != nil {
			return err
		}
	}

	s.logger.Info().
		Int("users", len(profiles)).
		Dur("elapsed", time.Since(start)).
		Msg("user profiles refreshed")
	return nil
}

// String identifies the service in suture's event log.
func (s *ProfileRefreshService) String() string { return "profile-refresh" }
