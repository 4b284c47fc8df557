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

// Trending scores books by recent rating velocity weighted by shrunk
// quality: activity alone never outranks quality because sparse books are
// pulled toward the global mean before the two factors multiply.
type Trending struct {
	repo     recommend.RelationalRepository
	profiles recommend.ProfileRepository
	config   recommend.TrendingConfig
	logger   zerolog.Logger
}

var _ recommend.Generator = (*Trending)(nil)

// NewTrending creates the trending generator.
func NewTrending(
	repo recommend.RelationalRepository,
	profiles recommend.ProfileRepository,
	cfg recommend.TrendingConfig,
	logger zerolog.Logger,
) *Trending {
	return &Trending{
		repo:     repo,
		profiles: profiles,
		config:   cfg,
		logger:   logger.With().Str("strategy", recommend.StrategyTrending).Logger(),
	}
}

// Name returns the strategy tag.
func (g *Trending) Name() string { return recommend.StrategyTrending }

// Generate implements recommend.Generator.
func (g *Trending) Generate(ctx context.Context, in *recommend.GeneratorInput) ([]recommend.CandidateScore, error) {
	active, err := g.repo.RecentlyActiveBooks(ctx,
		g.config.WindowPct, g.config.MinRecentCount, g.config.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("load recently active books: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	isbns := make([]string, 0, len(active))
	for _, a := range active {
		if !in.Rated[a.ISBN] {
			isbns = append(isbns, a.ISBN)
		}
	}
	if len(isbns) == 0 {
		return nil, nil
	}

	bookMetrics, err := g.profiles.BookMetrics(ctx, isbns)
	if err != nil {
		return nil, fmt.Errorf("load book metrics: %w", err)
	}

	scored := make([]recommend.CandidateScore, 0, len(isbns))
	for _, a := range active {
		if in.Rated[a.ISBN] {
			continue
		}
		quality := g.shrunkQuality(bookMetrics[a.ISBN])
		scored = append(scored, recommend.CandidateScore{
			ISBN:     a.ISBN,
			RawScore: float64(a.RecentCount) * quality,
			Strategy: recommend.StrategyTrending,
			Evidence: recommend.Evidence{
				RecentCount:  a.RecentCount,
				QualityScore: quality,
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

// shrunkQuality applies Bayesian shrinkage toward the global mean rating.
// Books without a metrics document score exactly the prior.
func (g *Trending) shrunkQuality(m *models.BookMetrics) float64 {
	c := g.config.ShrinkageC
	prior := g.config.GlobalMeanRating
	if m == nil || m.RatingCount == 0 {
		return prior
	}
	n := float64(m.RatingCount)
	return (n*m.RatingMean + c*prior) / (n + c)
}
