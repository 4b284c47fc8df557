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

// Collaborative scores candidates from the user's co-rater neighborhood:
// users who share enough positive ratings with the target user, whose own
// endorsements become candidate books.
//
// Neighbor overlap is computed in SQL, so the strategy never loads another
// user's full history into memory. The neighbor set and the candidate set
// are both capped structurally.
type Collaborative struct {
	repo   recommend.RelationalRepository
	config recommend.CollaborativeConfig
	logger zerolog.Logger
}

var _ recommend.Generator = (*Collaborative)(nil)

// NewCollaborative creates the collaborative generator.
func NewCollaborative(repo recommend.RelationalRepository, cfg recommend.CollaborativeConfig, logger zerolog.Logger) *Collaborative {
	return &Collaborative{
		repo:   repo,
		config: cfg,
		logger: logger.With().Str("strategy", recommend.StrategyCollaborative).Logger(),
	}
}

// Name returns the strategy tag.
func (g *Collaborative) Name() string { return recommend.StrategyCollaborative }

// Generate implements recommend.Generator.
func (g *Collaborative) Generate(ctx context.Context, in *recommend.GeneratorInput) ([]recommend.CandidateScore, error) {
	neighbors, err := g.repo.TopCoRaters(ctx, in.User.UserID, g.config.MinSharedRatings, g.config.MaxNeighbors)
	if err != nil {
		return nil, fmt.Errorf("load co-raters: %w", err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.UserID
	}

	aggs, err := g.repo.BooksRatedBy(ctx, ids,
		models.PositiveRatingThreshold, g.config.MinSupport, g.config.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("load neighbor favorites: %w", err)
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
			Strategy: recommend.StrategyCollaborative,
			Evidence: recommend.Evidence{
				NeighborCount: len(neighbors),
				SupportCount:  agg.Support,
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
