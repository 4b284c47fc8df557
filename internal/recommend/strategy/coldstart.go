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

// ColdStart serves users without usable history. It looks up the favorites
// of the user's demographic cohort (age group and country), boosts them by
// global popularity, and falls back to globally popular books when the
// cohort is too thin. It never returns empty for lack of personal data;
// the fallback path requires no user signal at all.
type ColdStart struct {
	repo     recommend.RelationalRepository
	profiles recommend.ProfileRepository
	config   recommend.ColdStartConfig
	logger   zerolog.Logger
}

var _ recommend.Generator = (*ColdStart)(nil)

// NewColdStart creates the cold-start generator.
func NewColdStart(
	repo recommend.RelationalRepository,
	profiles recommend.ProfileRepository,
	cfg recommend.ColdStartConfig,
	logger zerolog.Logger,
) *ColdStart {
	return &ColdStart{
		repo:     repo,
		profiles: profiles,
		config:   cfg,
		logger:   logger.With().Str("strategy", recommend.StrategyColdStart).Logger(),
	}
}

// Name returns the strategy tag.
func (g *ColdStart) Name() string { return recommend.StrategyColdStart }

// Generate implements recommend.Generator.
func (g *ColdStart) Generate(ctx context.Context, in *recommend.GeneratorInput) ([]recommend.CandidateScore, error) {
	aggs, cohortSize, err := g.cohortFavorites(ctx, in.User)
	if err != nil {
		return nil, err
	}
	aggs = dropRated(aggs, in.Rated)

	fallback := false
	if len(aggs) == 0 {
		fallback = true
		aggs, err = g.repo.GloballyPopularBooks(ctx, g.config.MaxCandidates)
		if err != nil {
			return nil, fmt.Errorf("load globally popular books: %w", err)
		}
		aggs = dropRated(aggs, in.Rated)
		if len(aggs) == 0 {
			return nil, nil
		}
	}

	isbns := make([]string, len(aggs))
	for i, agg := range aggs {
		isbns[i] = agg.ISBN
	}
	bookMetrics, err := g.profiles.BookMetrics(ctx, isbns)
	if err != nil {
		return nil, fmt.Errorf("load book metrics: %w", err)
	}

	scored := make([]recommend.CandidateScore, 0, len(aggs))
	for _, agg := range aggs {
		score := agg.MeanRating
		if m := bookMetrics[agg.ISBN]; m != nil {
			score *= 1 + m.PopularityScore
		}
		scored = append(scored, recommend.CandidateScore{
			ISBN:     agg.ISBN,
			RawScore: score,
			Strategy: recommend.StrategyColdStart,
			Evidence: recommend.Evidence{
				CohortSize:     cohortSize,
				SupportCount:   agg.Support,
				GlobalFallback: fallback,
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

// cohortFavorites returns the favorites of the user's demographic cohort.
// Users without demographic attributes skip straight to the fallback.
func (g *ColdStart) cohortFavorites(ctx context.Context, user *models.User) ([]recommend.BookAggregate, int, error) {
	if user.AgeGroup == "" && user.Country == "" {
		return nil, 0, nil
	}

	cohort, err := g.repo.UsersByDemographic(ctx,
		user.AgeGroup, user.Gender, user.Country, g.config.MaxCohortUsers)
	if err != nil {
		return nil, 0, fmt.Errorf("load demographic cohort: %w", err)
	}

	peers := cohort[:0:0]
	for _, id := range cohort {
		if id != user.UserID {
			peers = append(peers, id)
		}
	}
	if len(peers) < g.config.CohortMinRaters {
		return nil, len(peers), nil
	}

	aggs, err := g.repo.BooksRatedBy(ctx, peers,
		models.PositiveRatingThreshold, g.config.CohortMinRaters, g.config.MaxCandidates)
	if err != nil {
		return nil, len(peers), fmt.Errorf("load cohort favorites: %w", err)
	}
	return aggs, len(peers), nil
}
