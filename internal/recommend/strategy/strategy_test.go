// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package strategy

import (
	"context"
	"testing"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// stubRepo implements recommend.RelationalRepository with per-method
// function hooks. Unhooked methods return empty results.
type stubRepo struct {
	userByID            func(int64) (*models.User, error)
	booksByISBN         func([]string) (map[string]*models.Book, error)
	topCoRaters         func(int64, int, int) ([]recommend.CoRater, error)
	candidatesByGenre   func([]string, []string, int) ([]models.Book, error)
	usersByDemographic  func(string, string, string, int) ([]int64, error)
	usersNear           func(float64, float64, float64, int) ([]int64, error)
	booksRatedBy        func([]int64, int, int, int) ([]recommend.BookAggregate, error)
	recentlyActiveBooks func(float64, int, int) ([]recommend.ActiveBook, error)
	globallyPopular     func(int) ([]recommend.BookAggregate, error)
}

func (s *stubRepo) UserByID(_ context.Context, userID int64) (*models.User, error) {
	if s.userByID == nil {
		return nil, recommend.ErrNotFound
	}
	return s.userByID(userID)
}

func (s *stubRepo) RatingsByUser(context.Context, int64, int) ([]models.Rating, error) {
	return nil, nil
}

func (s *stubRepo) BooksByISBN(_ context.Context, isbns []string) (map[string]*models.Book, error) {
	if s.booksByISBN == nil {
		return map[string]*models.Book{}, nil
	}
	return s.booksByISBN(isbns)
}

func (s *stubRepo) TopCoRaters(_ context.Context, userID int64, minShared, limit int) ([]recommend.CoRater, error) {
	if s.topCoRaters == nil {
		return nil, nil
	}
	return s.topCoRaters(userID, minShared, limit)
}

func (s *stubRepo) CandidatesByGenre(_ context.Context, genres, exclude []string, limit int) ([]models.Book, error) {
	if s.candidatesByGenre == nil {
		return nil, nil
	}
	return s.candidatesByGenre(genres, exclude, limit)
}

func (s *stubRepo) UsersByDemographic(_ context.Context, ageGroup, gender, country string, limit int) ([]int64, error) {
	if s.usersByDemographic == nil {
		return nil, nil
	}
	return s.usersByDemographic(ageGroup, gender, country, limit)
}

func (s *stubRepo) UsersNear(_ context.Context, lat, lon, radiusKm float64, limit int) ([]int64, error) {
	if s.usersNear == nil {
		return nil, nil
	}
	return s.usersNear(lat, lon, radiusKm, limit)
}

func (s *stubRepo) BooksRatedBy(_ context.Context, userIDs []int64, minRating, minSupport, limit int) ([]recommend.BookAggregate, error) {
	if s.booksRatedBy == nil {
		return nil, nil
	}
	return s.booksRatedBy(userIDs, minRating, minSupport, limit)
}

func (s *stubRepo) RecentlyActiveBooks(_ context.Context, windowPct float64, minCount, limit int) ([]recommend.ActiveBook, error) {
	if s.recentlyActiveBooks == nil {
		return nil, nil
	}
	return s.recentlyActiveBooks(windowPct, minCount, limit)
}

func (s *stubRepo) GloballyPopularBooks(_ context.Context, limit int) ([]recommend.BookAggregate, error) {
	if s.globallyPopular == nil {
		return nil, nil
	}
	return s.globallyPopular(limit)
}

// stubProfiles implements recommend.ProfileRepository over in-memory maps.
type stubProfiles struct {
	metrics map[string]*models.BookMetrics
}

func (s *stubProfiles) UserProfile(context.Context, int64) (*models.UserProfile, error) {
	return nil, recommend.ErrNotFound
}

func (s *stubProfiles) BookMetrics(_ context.Context, isbns []string) (map[string]*models.BookMetrics, error) {
	out := make(map[string]*models.BookMetrics)
	for _, isbn := range isbns {
		if m, ok := s.metrics[isbn]; ok {
			out[isbn] = m
		}
	}
	return out, nil
}

func (s *stubProfiles) CachedRecommendation(context.Context, int64) (*models.RecommendationRecord, error) {
	return nil, recommend.ErrNotFound
}

func (s *stubProfiles) PutRecommendation(context.Context, *models.RecommendationRecord) error {
	return nil
}

func genInput(user *models.User, ratings []models.Rating) *recommend.GeneratorInput {
	rated := make(map[string]bool, len(ratings))
	for _, r := range ratings {
		rated[r.ISBN] = true
	}
	return &recommend.GeneratorInput{
		User:    user,
		Ratings: ratings,
		Rated:   rated,
		Limit:   50,
	}
}

func isbnsOf(scored []recommend.CandidateScore) []string {
	out := make([]string, len(scored))
	for i, c := range scored {
		out[i] = c.ISBN
	}
	return out
}

func TestDropRated(t *testing.T) {
	t.Parallel()

	aggs := []recommend.BookAggregate{
		{ISBN: "A"}, {ISBN: "B"}, {ISBN: "C"},
	}
	got := dropRated(aggs, map[string]bool{"B": true})
	if len(got) != 2 || got[0].ISBN != "A" || got[1].ISBN != "C" {
		t.Errorf("dropRated() = %v, want [A C]", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	scored := []recommend.CandidateScore{{ISBN: "A"}, {ISBN: "B"}}
	if got := truncate(scored, 1); len(got) != 1 {
		t.Errorf("truncate(2, 1) kept %d", len(got))
	}
	if got := truncate(scored, 10); len(got) != 2 {
		t.Errorf("truncate(2, 10) kept %d", len(got))
	}
}
