// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import (
	"context"
	"time"

	"github.com/mwhitten/bookrec/internal/models"
)

// Strategy names. These are the only keys accepted in Request.Weights and
// the tags used in score breakdowns and explanation reasons.
const (
	StrategyContentBased  = "content_based"
	StrategyCollaborative = "collaborative"
	StrategyTrending      = "trending"
	StrategyGeographic    = "geographic"
	StrategyColdStart     = "cold_start"
)

// StrategyNames lists all known strategies in canonical order.
func StrategyNames() []string {
	return []string{
		StrategyContentBased,
		StrategyCollaborative,
		StrategyTrending,
		StrategyGeographic,
		StrategyColdStart,
	}
}

// KnownStrategy reports whether name is a recognized strategy key.
func KnownStrategy(name string) bool {
	switch name {
	case StrategyContentBased, StrategyCollaborative, StrategyTrending,
		StrategyGeographic, StrategyColdStart:
		return true
	}
	return false
}

// Evidence captures the per-strategy signals behind a candidate score.
// The explanation engine renders reasons from this record alone; it never
// issues new repository queries.
type Evidence struct {
	MatchedGenre   string  `json:"matched_genre,omitempty"`
	MatchedAuthor  string  `json:"matched_author,omitempty"`
	SimilarISBN    string  `json:"similar_isbn,omitempty"`
	SimilarTitle   string  `json:"similar_title,omitempty"`
	NeighborCount  int     `json:"neighbor_count,omitempty"`
	SupportCount   int     `json:"support_count,omitempty"`
	CohortSize     int     `json:"cohort_size,omitempty"`
	RadiusKm       float64 `json:"radius_km,omitempty"`
	RecentCount    int     `json:"recent_count,omitempty"`
	QualityScore   float64 `json:"quality_score,omitempty"`
	GlobalFallback bool    `json:"global_fallback,omitempty"`
}

// CandidateScore is one strategy's scored candidate. Raw scores are only
// comparable within a single strategy's output; the scorer normalizes them
// before blending.
type CandidateScore struct {
	ISBN     string
	RawScore float64
	Strategy string
	Evidence Evidence
}

// GeneratorInput is the prefetched per-user state handed to every generator
// for one engine run. The engine loads it once so generators do not repeat
// the same ratings query five times.
type GeneratorInput struct {
	// User is always present.
	User *models.User

	// Profile is nil when the user has no preference document.
	Profile *models.UserProfile

	// Ratings is the user's full rating history, possibly empty.
	Ratings []models.Rating

	// Rated indexes Ratings by ISBN. Generators must not emit candidates
	// present in this set.
	Rated map[string]bool

	// Limit caps how many candidates the generator may return.
	Limit int
}

// Generator produces scored candidates for one retrieval strategy.
// Implementations must honor ctx cancellation and need not return their
// candidates sorted; the scorer does not rely on generator order.
type Generator interface {
	// Name returns the strategy tag, one of the Strategy* constants.
	Name() string

	// Generate returns up to in.Limit candidates for the user. An empty
	// result with a nil error means the strategy legitimately has nothing
	// to offer (for example a geographic strategy with no coordinates).
	Generate(ctx context.Context, in *GeneratorInput) ([]CandidateScore, error)
}

// CoRater is a neighbor row from the co-rater query: another user together
// with the number of positively-rated books shared with the target user.
type CoRater struct {
	UserID      int64
	SharedCount int
}

// BookAggregate is an aggregated rating row for a candidate book within
// some user set: its mean rating there and how many of those users rated it.
type BookAggregate struct {
	ISBN       string
	MeanRating float64
	Support    int
}

// ActiveBook is a recent-activity row: how many of the book's ratings fall
// inside the trailing activity window.
type ActiveBook struct {
	ISBN        string
	RecentCount int
	TotalCount  int
}

// RelationalRepository is the bounded read surface over the relational
// store. Every method applies an explicit result cap; none exposes raw SQL
// or unbounded scans. Infrastructure failures surface as
// ErrRepositoryUnavailable, absent rows as ErrNotFound.
type RelationalRepository interface {
	// UserByID returns the user row.
	UserByID(ctx context.Context, userID int64) (*models.User, error)

	// RatingsByUser returns the user's rating history, capped at limit.
	RatingsByUser(ctx context.Context, userID int64, limit int) ([]models.Rating, error)

	// BooksByISBN bulk-loads catalog entries. Unknown ISBNs are omitted.
	BooksByISBN(ctx context.Context, isbns []string) (map[string]*models.Book, error)

	// TopCoRaters returns users sharing at least minShared positive
	// ratings with userID, strongest overlap first, capped at limit.
	TopCoRaters(ctx context.Context, userID int64, minShared, limit int) ([]CoRater, error)

	// CandidatesByGenre returns books whose root genres intersect genres,
	// excluding the given ISBNs, capped at limit.
	CandidatesByGenre(ctx context.Context, genres, exclude []string, limit int) ([]models.Book, error)

	// UsersByDemographic returns users matching the cohort attributes.
	// Empty attribute values are not filtered on.
	UsersByDemographic(ctx context.Context, ageGroup, gender, country string, limit int) ([]int64, error)

	// UsersNear returns users within radiusKm of the given point.
	UsersNear(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]int64, error)

	// BooksRatedBy aggregates ratings >= minRating among userIDs, keeping
	// books with at least minSupport such ratings, capped at limit.
	BooksRatedBy(ctx context.Context, userIDs []int64, minRating, minSupport, limit int) ([]BookAggregate, error)

	// RecentlyActiveBooks returns books with at least minCount ratings in
	// their trailing windowPct share of rating activity, capped at limit.
	RecentlyActiveBooks(ctx context.Context, windowPct float64, minCount, limit int) ([]ActiveBook, error)

	// GloballyPopularBooks returns the most-rated well-rated books.
	GloballyPopularBooks(ctx context.Context, limit int) ([]BookAggregate, error)
}

// ProfileRepository is the document-store surface: preference profiles,
// book metrics, and the recommendation cache.
type ProfileRepository interface {
	// UserProfile returns the preference document, or ErrNotFound.
	UserProfile(ctx context.Context, userID int64) (*models.UserProfile, error)

	// BookMetrics bulk-loads metric documents. Missing ISBNs are omitted.
	BookMetrics(ctx context.Context, isbns []string) (map[string]*models.BookMetrics, error)

	// CachedRecommendation returns the user's cached record, or
	// ErrNotFound when absent or expired. Expired records are never
	// returned.
	CachedRecommendation(ctx context.Context, userID int64) (*models.RecommendationRecord, error)

	// PutRecommendation stores the record, unconditionally replacing any
	// previous record for the same user.
	PutRecommendation(ctx context.Context, rec *models.RecommendationRecord) error
}

// Request is a recommendation request after transport decoding.
type Request struct {
	UserID int64

	// K is the number of items wanted. Zero means the configured default.
	K int

	// Weights overrides the configured strategy weights. Nil means use
	// configured weights; a present map must contain only known strategy
	// keys with non-negative values and a positive sum.
	Weights map[string]float64

	// Diversity overrides the configured diversity strength in [0,1].
	// Nil means use the configured value; 0 disables diversity filtering.
	Diversity *float64

	// SkipCache forces recomputation even when a fresh record exists.
	SkipCache bool
}

// Response is the result of one recommendation run.
type Response struct {
	UserID    int64                    `json:"user_id"`
	Items     []models.RecommendedBook `json:"items"`
	ColdStart bool                     `json:"cold_start"`
	FromCache bool                     `json:"from_cache"`

	// Strategies lists the strategies that contributed candidates.
	Strategies []string `json:"strategies,omitempty"`

	ModelVersion string    `json:"model_version,omitempty"`
	ComputedAt   time.Time `json:"computed_at"`
}
