// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Weights defines the relative contribution of each strategy.
	// Weights are normalized at runtime, so they don't need to sum to 1.0.
	Weights StrategyWeights `json:"weights" koanf:"weights"`

	// ContentBased contains parameters for content-based filtering.
	ContentBased ContentBasedConfig `json:"content_based" koanf:"content_based"`

	// Collaborative contains parameters for co-rater filtering.
	Collaborative CollaborativeConfig `json:"collaborative" koanf:"collaborative"`

	// Trending contains parameters for the popularity/trending strategy.
	Trending TrendingConfig `json:"trending" koanf:"trending"`

	// Geographic contains parameters for regional clustering.
	Geographic GeographicConfig `json:"geographic" koanf:"geographic"`

	// ColdStart contains parameters for cold-start handling.
	ColdStart ColdStartConfig `json:"cold_start" koanf:"cold_start"`

	// Diversity contains parameters for the diversity filter.
	Diversity DiversityConfig `json:"diversity" koanf:"diversity"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`

	// Cache contains recommendation cache parameters.
	Cache CacheConfig `json:"cache" koanf:"cache"`

	// ModelVersion is stamped into every recommendation record.
	ModelVersion string `json:"model_version" koanf:"model_version"`
}

// StrategyWeights defines the relative contribution of each strategy.
type StrategyWeights struct {
	ContentBased  float64 `json:"content_based" koanf:"content_based"`
	Collaborative float64 `json:"collaborative" koanf:"collaborative"`
	Trending      float64 `json:"trending" koanf:"trending"`
	Geographic    float64 `json:"geographic" koanf:"geographic"`
	ColdStart     float64 `json:"cold_start" koanf:"cold_start"`
}

// ToMap converts weights to a map keyed by strategy name.
func (w StrategyWeights) ToMap() map[string]float64 {
	return map[string]float64{
		StrategyContentBased:  w.ContentBased,
		StrategyCollaborative: w.Collaborative,
		StrategyTrending:      w.Trending,
		StrategyGeographic:    w.Geographic,
		StrategyColdStart:     w.ColdStart,
	}
}

// NormalizeWeights returns a copy of the map scaled to sum to 1.0 over its
// positive entries. An all-zero map yields equal weights across its keys.
func NormalizeWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))

	var sum float64
	for _, v := range weights {
		sum += v
	}
	if sum == 0 {
		equal := 1.0 / float64(len(weights))
		for k := range weights {
			out[k] = equal
		}
		return out
	}
	for k, v := range weights {
		out[k] = v / sum
	}
	return out
}

// ContentBasedConfig contains parameters for content-based filtering.
type ContentBasedConfig struct {
	// MaxCandidates caps how many genre-matched books are scanned.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`

	// MaxLikedBooks caps how many of the user's positively rated books
	// anchor the similarity comparison (most recent first).
	MaxLikedBooks int `json:"max_liked_books" koanf:"max_liked_books"`

	// MinSimilarity drops candidates below this cosine similarity.
	MinSimilarity float64 `json:"min_similarity" koanf:"min_similarity"`
}

// CollaborativeConfig contains parameters for co-rater filtering.
type CollaborativeConfig struct {
	// MinSharedRatings is the minimum number of shared positive ratings
	// for another user to count as a neighbor.
	MinSharedRatings int `json:"min_shared_ratings" koanf:"min_shared_ratings"`

	// MaxNeighbors caps the neighbor set.
	MaxNeighbors int `json:"max_neighbors" koanf:"max_neighbors"`

	// MinSupport is the minimum number of neighbor endorsements a
	// candidate book needs.
	MinSupport int `json:"min_support" koanf:"min_support"`

	// MaxCandidates caps the candidate books considered.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// TrendingConfig contains parameters for the popularity/trending strategy.
type TrendingConfig struct {
	// WindowPct is the trailing share of each book's rating activity
	// treated as recent, in (0,1].
	WindowPct float64 `json:"window_pct" koanf:"window_pct"`

	// MinRecentCount drops books with fewer recent ratings.
	MinRecentCount int `json:"min_recent_count" koanf:"min_recent_count"`

	// ShrinkageC is the Bayesian shrinkage constant pulling sparse books
	// toward the global mean rating.
	ShrinkageC float64 `json:"shrinkage_c" koanf:"shrinkage_c"`

	// GlobalMeanRating is the prior used by the shrinkage formula.
	GlobalMeanRating float64 `json:"global_mean_rating" koanf:"global_mean_rating"`

	// MaxCandidates caps the trending candidate set.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// GeographicConfig contains parameters for regional clustering.
type GeographicConfig struct {
	// RadiusKm is the great-circle radius of the reader cluster.
	RadiusKm float64 `json:"radius_km" koanf:"radius_km"`

	// MaxClusterSize caps the nearby-user set.
	MaxClusterSize int `json:"max_cluster_size" koanf:"max_cluster_size"`

	// MinSupport is the minimum number of cluster raters a regional
	// favorite needs.
	MinSupport int `json:"min_support" koanf:"min_support"`

	// MaxCandidates caps the candidate books considered.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// ColdStartConfig contains parameters for cold-start handling.
type ColdStartConfig struct {
	// MinRatings is the rating count below which a user is treated as
	// cold regardless of profile presence.
	MinRatings int `json:"min_ratings" koanf:"min_ratings"`

	// CohortMinRaters is the minimum cohort endorsements a cohort
	// favorite needs.
	CohortMinRaters int `json:"cohort_min_raters" koanf:"cohort_min_raters"`

	// MaxCohortUsers caps the demographic cohort.
	MaxCohortUsers int `json:"max_cohort_users" koanf:"max_cohort_users"`

	// MaxCandidates caps the candidate books considered.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// DiversityConfig contains parameters for the diversity filter.
type DiversityConfig struct {
	// Strength is the default diversity knob in [0,1]. Zero disables the
	// filter; one applies the configured caps exactly.
	Strength float64 `json:"strength" koanf:"strength"`

	// MaxPerAuthor caps items per primary author at full strength.
	MaxPerAuthor int `json:"max_per_author" koanf:"max_per_author"`

	// MaxPerGenre caps items per primary genre at full strength.
	MaxPerGenre int `json:"max_per_genre" koanf:"max_per_genre"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultK is the list size when the request does not specify one.
	DefaultK int `json:"default_k" koanf:"default_k"`

	// MaxK is the maximum list size accepted.
	MaxK int `json:"max_k" koanf:"max_k"`

	// MaxRatingsFetched caps the rating-history prefetch.
	MaxRatingsFetched int `json:"max_ratings_fetched" koanf:"max_ratings_fetched"`

	// StrategyTimeout bounds each generator's run.
	StrategyTimeout time.Duration `json:"strategy_timeout" koanf:"strategy_timeout"`
}

// CacheConfig contains recommendation cache parameters.
type CacheConfig struct {
	// Enabled toggles the read-through/write-through cache.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// TTL is how long a recommendation record stays fresh.
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// SweepInterval is how often expired records are physically removed.
	SweepInterval time.Duration `json:"sweep_interval" koanf:"sweep_interval"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Weights: StrategyWeights{
			ContentBased:  0.30,
			Collaborative: 0.30,
			Trending:      0.20,
			Geographic:    0.10,
			ColdStart:     0.10,
		},
		ContentBased: ContentBasedConfig{
			MaxCandidates: 1000,
			MaxLikedBooks: 50,
			MinSimilarity: 0.05,
		},
		Collaborative: CollaborativeConfig{
			MinSharedRatings: 2,
			MaxNeighbors:     500,
			MinSupport:       3,
			MaxCandidates:    200,
		},
		Trending: TrendingConfig{
			WindowPct:        0.2,
			MinRecentCount:   5,
			ShrinkageC:       10,
			GlobalMeanRating: 7.0,
			MaxCandidates:    200,
		},
		Geographic: GeographicConfig{
			RadiusKm:       100,
			MaxClusterSize: 500,
			MinSupport:     3,
			MaxCandidates:  200,
		},
		ColdStart: ColdStartConfig{
			MinRatings:      3,
			CohortMinRaters: 5,
			MaxCohortUsers:  500,
			MaxCandidates:   200,
		},
		Diversity: DiversityConfig{
			Strength:     1.0,
			MaxPerAuthor: 2,
			MaxPerGenre:  3,
		},
		Limits: LimitsConfig{
			DefaultK:          10,
			MaxK:              100,
			MaxRatingsFetched: 2000,
			StrategyTimeout:   3 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           24 * time.Hour,
			SweepInterval: time.Hour,
		},
		ModelVersion: "hybrid-v1",
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	for name, w := range c.Weights.ToMap() {
		if w < 0 {
			return fmt.Errorf("weights.%s: must be non-negative, got %f", name, w)
		}
	}
	if c.ContentBased.MaxCandidates <= 0 {
		return fmt.Errorf("content_based.max_candidates: must be positive, got %d", c.ContentBased.MaxCandidates)
	}
	if c.ContentBased.MinSimilarity < 0 || c.ContentBased.MinSimilarity > 1 {
		return fmt.Errorf("content_based.min_similarity: must be in [0,1], got %f", c.ContentBased.MinSimilarity)
	}
	if c.Collaborative.MinSharedRatings < 1 {
		return fmt.Errorf("collaborative.min_shared_ratings: must be >= 1, got %d", c.Collaborative.MinSharedRatings)
	}
	if c.Collaborative.MaxNeighbors <= 0 {
		return fmt.Errorf("collaborative.max_neighbors: must be positive, got %d", c.Collaborative.MaxNeighbors)
	}
	if c.Trending.WindowPct <= 0 || c.Trending.WindowPct > 1 {
		return fmt.Errorf("trending.window_pct: must be in (0,1], got %f", c.Trending.WindowPct)
	}
	if c.Trending.ShrinkageC < 0 {
		return fmt.Errorf("trending.shrinkage_c: must be non-negative, got %f", c.Trending.ShrinkageC)
	}
	if c.Geographic.RadiusKm <= 0 {
		return fmt.Errorf("geographic.radius_km: must be positive, got %f", c.Geographic.RadiusKm)
	}
	if c.ColdStart.MinRatings < 0 {
		return fmt.Errorf("cold_start.min_ratings: must be non-negative, got %d", c.ColdStart.MinRatings)
	}
	if c.Diversity.Strength < 0 || c.Diversity.Strength > 1 {
		return fmt.Errorf("diversity.strength: must be in [0,1], got %f", c.Diversity.Strength)
	}
	if c.Diversity.MaxPerAuthor < 1 {
		return fmt.Errorf("diversity.max_per_author: must be >= 1, got %d", c.Diversity.MaxPerAuthor)
	}
	if c.Diversity.MaxPerGenre < 1 {
		return fmt.Errorf("diversity.max_per_genre: must be >= 1, got %d", c.Diversity.MaxPerGenre)
	}
	if c.Limits.DefaultK <= 0 {
		return fmt.Errorf("limits.default_k: must be positive, got %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k: must be >= default_k, got %d", c.Limits.MaxK)
	}
	if c.Limits.StrategyTimeout <= 0 {
		return fmt.Errorf("limits.strategy_timeout: must be positive, got %s", c.Limits.StrategyTimeout)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl: must be positive when cache is enabled, got %s", c.Cache.TTL)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() Config {
	return *c
}
