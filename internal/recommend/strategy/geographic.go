// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// Geographic scores the favorites of the user's regional reader cluster:
// users within a great-circle radius of the target user's coordinates.
// Users without coordinates get no geographic candidates, which is a
// legitimate empty result rather than an error.
type Geographic struct {
	repo   recommend.RelationalRepository
	config recommend.GeographicConfig
	logger zerolog.Logger
}

var _ recommend.Generator = (*Geographic)(nil)

// NewGeographic creates the geographic generator.
func NewGeographic(repo recommend.RelationalRepository, cfg recommend.GeographicConfig, logger zerolog.Logger) *Geographic {
	return &Geographic{
		repo:   repo,
		config: cfg,
		logger: logger.With().Str("strategy", recommend.StrategyGeographic).Logger(),
	}
}

// Name returns the strategy tag.
func (g *Geographic) Name() string { return recommend.StrategyGeographic }

// Generate implements recommend.Generator.
func (g *Geographic) Generate(ctx context.Context, in *recommend.GeneratorInput) ([]recommend.CandidateScore, error) {
	if !in.User.HasLocation() {
		return nil, nil
	}

	cluster, err := g.repo.UsersNear(ctx,
		*in.User.Latitude, *in.User.Longitude, g.config.RadiusKm, g.config.MaxClusterSize)
	if err != nil {
		return nil, fmt.Errorf("load nearby users: %w", err)
	}

	peers := cluster[:0:0]
	for _, id := range cluster {
		if id != in.User.UserID {
			peers = append(peers, id)
		}
	}
	if len(peers) == 0 {
		return nil, nil
	}

	aggs, err := g.repo.BooksRatedBy(ctx, peers,
		models.PositiveRatingThreshold, g.config.MinSupport, g.config.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("load regional favorites: %w", err)
	}
	aggs = dropRated(aggs, in.Rated)
	if len(aggs) == 0 {
		return nil, nil
	}

	scored := make([]recommend.CandidateScore, 0, len(aggs))
	for _, agg := range aggs {
		scored = append(scored, recommend.CandidateScore{
			ISBN:     agg.ISBN,
			RawScore: agg.MeanRating,
			Strategy: recommend.StrategyGeographic,
			Evidence: recommend.Evidence{
				SupportCount: agg.Support,
				RadiusKm:     g.config.RadiusKm,
			},
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].RawScore != scored[j].RawScore {
			return scored[i].RawScore > scored[j].RawScore
		}
		return scored[i].ISBN < scored[j].ISBN
	})
	return truncate(scored, in.Limit), nil
}
