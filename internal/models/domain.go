// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package models defines the shared domain types for Bookrec.
//
// Relational entities (User, Book, Rating) live in DuckDB and are read
// through the relational store. Document entities (UserProfile, BookMetrics,
// RecommendationRecord) live in Badger as JSON and are produced by the
// offline enrichment pipeline or by the recommendation engine itself.
package models

import "time"

// Rating scale bounds. Ratings are explicit, 0-10 inclusive.
// A rating of 0 is a recorded interaction, not a missing value.
const (
	RatingMin = 0
	RatingMax = 10

	// PositiveRatingThreshold is the value at or above which a rating
	// counts as an endorsement for neighbor and candidate selection.
	PositiveRatingThreshold = 7
)

// User is a registered reader from the relational store.
type User struct {
	UserID    int64    `json:"user_id"`
	Age       *int     `json:"age,omitempty"`
	AgeGroup  string   `json:"age_group,omitempty"`
	Gender    string   `json:"gender,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	HasRatings     bool `json:"has_ratings"`
	HasPreferences bool `json:"has_preferences"`
}

// HasLocation reports whether the user carries usable coordinates.
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// Book is a catalog entry from the relational store.
// Authors preserves catalog order; the first entry is the primary author.
type Book struct {
	ISBN            string   `json:"isbn"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	PublicationYear int      `json:"publication_year,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	PrimaryGenre    string   `json:"primary_genre,omitempty"`
	RootGenres      []string `json:"root_genres,omitempty"`
	Subgenres       []string `json:"subgenres,omitempty"`
}

// PrimaryAuthor returns the first catalog author, or "" for anonymous works.
func (b *Book) PrimaryAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// Rating is one user's explicit rating of one book.
// UserSeq and BookSeq are per-user and per-book monotone sequence numbers
// assigned at ingestion; they stand in for timestamps when ordering activity.
type Rating struct {
	UserID  int64  `json:"user_id"`
	ISBN    string `json:"isbn"`
	Value   int    `json:"value"`
	UserSeq int64  `json:"user_seq,omitempty"`
	BookSeq int64  `json:"book_seq,omitempty"`
}

// Positive reports whether the rating counts as an endorsement.
func (r *Rating) Positive() bool {
	return r.Value >= PositiveRatingThreshold
}

// UserProfile is the enriched preference document for one user.
// It may be absent for users who never rated anything; absence is a
// legitimate state, not an error.
type UserProfile struct {
	UserID int64 `json:"user_id"`

	// ReaderClass buckets engagement: "inactive", "casual", "regular", "power".
	ReaderClass string `json:"reader_class,omitempty"`
	// CriticBias is the user's mean rating minus the global mean; negative
	// values mark harsh raters.
	CriticBias float64 `json:"critic_bias,omitempty"`

	RatingCount  int     `json:"rating_count"`
	RatingMean   float64 `json:"rating_mean,omitempty"`
	RatingMedian float64 `json:"rating_median,omitempty"`
	RatingStd    float64 `json:"rating_std,omitempty"`

	// Ranked preference lists, most preferred first.
	PreferredRootGenres []string `json:"preferred_root_genres,omitempty"`
	PreferredSubgenres  []string `json:"preferred_subgenres,omitempty"`
	PreferredAuthors    []string `json:"preferred_authors,omitempty"`
	PreferredPublishers []string `json:"preferred_publishers,omitempty"`
	FavoriteBooks       []string `json:"favorite_books,omitempty"`

	PriceBand string `json:"price_band,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HasPreferences reports whether the profile carries enough signal for
// personalized strategies.
func (p *UserProfile) HasPreferences() bool {
	return len(p.PreferredRootGenres) > 0 || len(p.PreferredAuthors) > 0
}

// BookMetrics is the enriched aggregate document for one book.
type BookMetrics struct {
	ISBN string `json:"isbn"`

	RatingCount int     `json:"rating_count"`
	RatingMean  float64 `json:"rating_mean"`
	RatingStd   float64 `json:"rating_std,omitempty"`

	// RatingCategory buckets quality: "poor", "average", "good", "excellent".
	RatingCategory string `json:"rating_category,omitempty"`

	// PopularityScore is a Bayesian-shrunk quality score combining rating
	// volume and mean, comparable across books with different rating counts.
	PopularityScore    float64 `json:"popularity_score"`
	PopularityCategory string  `json:"popularity_category,omitempty"`

	// RecentActivity is the fraction of the book's ratings that fall in the
	// trailing activity window, in [0,1].
	RecentActivity float64 `json:"recent_activity"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RecommendedBook is one entry of a finished recommendation list.
type RecommendedBook struct {
	ISBN  string  `json:"isbn"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score"`

	// Reason is the primary strategy tag plus a short human-readable
	// explanation, e.g. "collaborative: 12 readers with similar taste
	// rated this highly".
	Reason string `json:"reason,omitempty"`

	// Breakdown maps strategy name to its weighted contribution to Score.
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// RecommendationRecord is the cached result of one engine run for one user.
// Records past ExpiresAt are treated as absent by the document store.
type RecommendationRecord struct {
	UserID       int64             `json:"user_id"`
	Items        []RecommendedBook `json:"items"`
	ModelVersion string            `json:"model_version,omitempty"`
	ColdStart    bool              `json:"cold_start,omitempty"`
	ComputedAt   time.Time         `json:"computed_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (r *RecommendationRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
