// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

func TestShrunkQuality(t *testing.T) {
	t.Parallel()

	cfg := recommend.DefaultConfig().Trending
	gen := NewTrending(&stubRepo{}, &stubProfiles{}, cfg, zerolog.Nop())

	tests := []struct {
		name string
		m    *models.BookMetrics
		want float64
	}{
		{"missing metrics scores the prior", nil, cfg.GlobalMeanRating},
		{"zero count scores the prior", &models.BookMetrics{}, cfg.GlobalMeanRating},
		{
			// (100*9 + 10*7) / 110
			"many ratings dominate the prior",
			&models.BookMetrics{RatingCount: 100, RatingMean: 9},
			(100*9 + cfg.ShrinkageC*cfg.GlobalMeanRating) / (100 + cfg.ShrinkageC),
		},
		{
			// (2*10 + 10*7) / 12: two perfect ratings barely move the prior.
			"sparse ratings shrink hard",
			&models.BookMetrics{RatingCount: 2, RatingMean: 10},
			(2*10 + cfg.ShrinkageC*cfg.GlobalMeanRating) / (2 + cfg.ShrinkageC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := gen.shrunkQuality(tt.m); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("shrunkQuality() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTrendingActivityTimesQuality(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{
		recentlyActiveBooks: func(windowPct float64, minCount, _ int) ([]recommend.ActiveBook, error) {
			if windowPct != 0.2 || minCount != 5 {
				t.Errorf("RecentlyActiveBooks window = %f min = %d, want 0.2 / 5", windowPct, minCount)
			}
			return []recommend.ActiveBook{
				{ISBN: "hot-sparse", RecentCount: 40, TotalCount: 41},
				{ISBN: "warm-solid", RecentCount: 25, TotalCount: 300},
				{ISBN: "rated", RecentCount: 90, TotalCount: 90},
			}, nil
		},
	}
	profiles := &stubProfiles{metrics: map[string]*models.BookMetrics{
		// Two ratings at 10 shrink to ~7.5; the sparse book's activity
		// edge is not enough to beat a well-established quality book.
		"hot-sparse": {ISBN: "hot-sparse", RatingCount: 2, RatingMean: 10},
		"warm-solid": {ISBN: "warm-solid", RatingCount: 250, RatingMean: 9},
	}}

	gen := NewTrending(repo, profiles, recommend.DefaultConfig().Trending, zerolog.Nop())
	in := genInput(
		&models.User{UserID: 1},
		[]models.Rating{{UserID: 1, ISBN: "rated", Value: 9}},
	)

	scored, err := gen.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("Generate() = %d candidates, want 2 (rated book dropped)", len(scored))
	}

	// hot-sparse: 40 * (2*10+10*7)/12 = 40 * 7.5 = 300
	// warm-solid: 25 * (250*9+10*7)/260 ≈ 25 * 8.923 ≈ 223
	if scored[0].ISBN != "hot-sparse" {
		t.Errorf("top candidate = %s, want hot-sparse", scored[0].ISBN)
	}
	if scored[0].Evidence.RecentCount != 40 {
		t.Errorf("evidence recent count = %d, want 40", scored[0].Evidence.RecentCount)
	}
	if q := scored[0].Evidence.QualityScore; math.Abs(q-7.5) > 1e-9 {
		t.Errorf("evidence quality = %f, want shrunk 7.5", q)
	}
}

func TestTrendingNoActivity(t *testing.T) {
	t.Parallel()

	gen := NewTrending(&stubRepo{}, &stubProfiles{}, recommend.DefaultConfig().Trending, zerolog.Nop())
	scored, err := gen.Generate(context.Background(), genInput(&models.User{UserID: 1}, nil))
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("Generate() = %d candidates with no recent activity, want 0", len(scored))
	}
}
