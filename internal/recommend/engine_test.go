// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
)

// fakeRelational is a hand-rolled RelationalRepository for engine tests.
type fakeRelational struct {
	users   map[int64]*models.User
	ratings map[int64][]models.Rating
	books   map[string]*models.Book

	userCalls  atomic.Int64
	booksCalls atomic.Int64
}

func (f *fakeRelational) UserByID(_ context.Context, userID int64) (*models.User, error) {
	f.userCalls.Add(1)
	user, ok := f.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (f *fakeRelational) RatingsByUser(_ context.Context, userID int64, _ int) ([]models.Rating, error) {
	return f.ratings[userID], nil
}

func (f *fakeRelational) BooksByISBN(_ context.Context, isbns []string) (map[string]*models.Book, error) {
	f.booksCalls.Add(1)
	out := make(map[string]*models.Book)
	for _, isbn := range isbns {
		if b, ok := f.books[isbn]; ok {
			out[isbn] = b
		}
	}
	return out, nil
}

func (f *fakeRelational) TopCoRaters(context.Context, int64, int, int) ([]CoRater, error) {
	return nil, nil
}

func (f *fakeRelational) CandidatesByGenre(context.Context, []string, []string, int) ([]models.Book, error) {
	return nil, nil
}

func (f *fakeRelational) UsersByDemographic(context.Context, string, string, string, int) ([]int64, error) {
	return nil, nil
}

func (f *fakeRelational) UsersNear(context.Context, float64, float64, float64, int) ([]int64, error) {
	return nil, nil
}

func (f *fakeRelational) BooksRatedBy(context.Context, []int64, int, int, int) ([]BookAggregate, error) {
	return nil, nil
}

func (f *fakeRelational) RecentlyActiveBooks(context.Context, float64, int, int) ([]ActiveBook, error) {
	return nil, nil
}

func (f *fakeRelational) GloballyPopularBooks(context.Context, int) ([]BookAggregate, error) {
	return nil, nil
}

// fakeProfiles is a hand-rolled ProfileRepository for engine tests.
type fakeProfiles struct {
	profiles map[int64]*models.UserProfile
	metrics  map[string]*models.BookMetrics
	cached   map[int64]*models.RecommendationRecord

	putCalls  atomic.Int64
	lastPut   *models.RecommendationRecord
	cacheHits atomic.Int64
}

func (f *fakeProfiles) UserProfile(_ context.Context, userID int64) (*models.UserProfile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) BookMetrics(_ context.Context, isbns []string) (map[string]*models.BookMetrics, error) {
	out := make(map[string]*models.BookMetrics)
	for _, isbn := range isbns {
		if m, ok := f.metrics[isbn]; ok {
			out[isbn] = m
		}
	}
	return out, nil
}

func (f *fakeProfiles) CachedRecommendation(_ context.Context, userID int64) (*models.RecommendationRecord, error) {
	rec, ok := f.cached[userID]
	if !ok || rec.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	f.cacheHits.Add(1)
	return rec, nil
}

func (f *fakeProfiles) PutRecommendation(_ context.Context, rec *models.RecommendationRecord) error {
	f.putCalls.Add(1)
	f.lastPut = rec
	if f.cached == nil {
		f.cached = make(map[int64]*models.RecommendationRecord)
	}
	f.cached[rec.UserID] = rec
	return nil
}

// fakeGenerator returns canned candidates or a canned error.
type fakeGenerator struct {
	name       string
	candidates []CandidateScore
	err        error
	onGenerate func()

	calls atomic.Int64
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(_ context.Context, _ *GeneratorInput) ([]CandidateScore, error) {
	f.calls.Add(1)
	if f.onGenerate != nil {
		f.onGenerate()
	}
	return f.candidates, f.err
}

func candidate(strategy, isbn string, score float64) CandidateScore {
	return CandidateScore{ISBN: isbn, RawScore: score, Strategy: strategy}
}

// warmFixture returns a relational fake with one warm user (three positive
// ratings and a profile) and a catalog covering the fixture candidates.
func warmFixture() (*fakeRelational, *fakeProfiles) {
	relational := &fakeRelational{
		users: map[int64]*models.User{
			1: {UserID: 1, HasRatings: true},
		},
		ratings: map[int64][]models.Rating{
			1: {
				{UserID: 1, ISBN: "A", Value: 9},
				{UserID: 1, ISBN: "B", Value: 8},
				{UserID: 1, ISBN: "C", Value: 2},
			},
		},
		books: map[string]*models.Book{
			"D": {ISBN: "D", Title: "Book D", Authors: []string{"king"}, PrimaryGenre: "horror"},
			"E": {ISBN: "E", Title: "Book E", Authors: []string{"austen"}, PrimaryGenre: "romance"},
			"F": {ISBN: "F", Title: "Book F", Authors: []string{"tolkien"}, PrimaryGenre: "fantasy"},
		},
	}
	profiles := &fakeProfiles{
		profiles: map[int64]*models.UserProfile{
			1: {UserID: 1, RatingCount: 3, PreferredRootGenres: []string{"horror"}},
		},
	}
	return relational, profiles
}

func newTestEngine(t *testing.T, relational *fakeRelational, profiles *fakeProfiles, generators ...Generator) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Limits.DefaultK = 3
	engine, err := NewEngine(cfg, relational, profiles, generators, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return engine
}

func TestRecommendInvalidRequests(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	engine := newTestEngine(t, relational, profiles,
		&fakeGenerator{name: StrategyContentBased})

	badDiversity := 1.5
	tests := []struct {
		name string
		req  *Request
	}{
		{"nil request", nil},
		{"zero user id", &Request{UserID: 0}},
		{"negative k", &Request{UserID: 1, K: -1}},
		{"k above max", &Request{UserID: 1, K: 1000}},
		{"unknown weight key", &Request{UserID: 1, Weights: map[string]float64{"bogus": 1}}},
		{"negative weight", &Request{UserID: 1, Weights: map[string]float64{StrategyTrending: -1}}},
		{"zero-sum weights", &Request{UserID: 1, Weights: map[string]float64{StrategyTrending: 0}}},
		{"diversity out of range", &Request{UserID: 1, Diversity: &badDiversity}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Recommend(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Recommend() error = %v, want ErrInvalidRequest", err)
			}
		})
	}

	// Validation failures must never reach the repositories.
	if relational.userCalls.Load() != 0 {
		t.Errorf("repository accessed %d times during validation failures", relational.userCalls.Load())
	}
}

func TestRecommendUnknownUser(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	engine := newTestEngine(t, relational, profiles,
		&fakeGenerator{name: StrategyContentBased})

	_, err := engine.Recommend(context.Background(), &Request{UserID: 999})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Recommend() error = %v, want ErrNotFound", err)
	}
}

func TestRecommendAllStrategiesFail(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	boom := errors.New("boom")
	engine := newTestEngine(t, relational, profiles,
		&fakeGenerator{name: StrategyContentBased, err: boom},
		&fakeGenerator{name: StrategyCollaborative, err: boom},
	)

	_, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if !errors.Is(err, ErrRecommendationUnavailable) {
		t.Errorf("Recommend() error = %v, want ErrRecommendationUnavailable", err)
	}
}

func TestRecommendDegradesOnPartialFailure(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	engine := newTestEngine(t, relational, profiles,
		&fakeGenerator{name: StrategyContentBased, err: errors.New("boom")},
		&fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
			candidate(StrategyCollaborative, "D", 9),
			candidate(StrategyCollaborative, "E", 7),
		}},
	)

	resp, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("Recommend() returned %d items, want 2 from the surviving strategy", len(resp.Items))
	}
	if resp.Items[0].ISBN != "D" {
		t.Errorf("top item = %s, want D", resp.Items[0].ISBN)
	}
	if len(resp.Strategies) != 1 || resp.Strategies[0] != StrategyCollaborative {
		t.Errorf("Strategies = %v, want [collaborative]", resp.Strategies)
	}
}

func TestRecommendColdStartSelection(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	relational.users[2] = &models.User{UserID: 2}
	relational.books["G"] = &models.Book{ISBN: "G", Title: "Book G"}

	content := &fakeGenerator{name: StrategyContentBased, candidates: []CandidateScore{
		candidate(StrategyContentBased, "D", 1),
	}}
	cold := &fakeGenerator{name: StrategyColdStart, candidates: []CandidateScore{
		candidate(StrategyColdStart, "G", 8),
	}}
	trending := &fakeGenerator{name: StrategyTrending, candidates: []CandidateScore{
		candidate(StrategyTrending, "F", 30),
	}}
	engine := newTestEngine(t, relational, profiles, content, cold, trending)

	resp, err := engine.Recommend(context.Background(), &Request{UserID: 2})
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if !resp.ColdStart {
		t.Error("ColdStart = false for user without history")
	}
	if content.calls.Load() != 0 {
		t.Error("content generator ran for a cold user")
	}
	if cold.calls.Load() != 1 || trending.calls.Load() != 1 {
		t.Error("cold_start and trending generators did not both run")
	}
	if len(resp.Items) == 0 {
		t.Error("cold-start response empty, want demographic/popularity fallback items")
	}
}

func TestRecommendCacheRoundTrip(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	collaborative := &fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
		candidate(StrategyCollaborative, "D", 9),
		candidate(StrategyCollaborative, "E", 8),
		candidate(StrategyCollaborative, "F", 7),
	}}
	engine := newTestEngine(t, relational, profiles, collaborative)

	first, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if err != nil {
		t.Fatalf("first Recommend() error: %v", err)
	}
	if first.FromCache {
		t.Error("first response served from cache")
	}
	if profiles.putCalls.Load() != 1 {
		t.Fatalf("cache writes = %d, want 1", profiles.putCalls.Load())
	}

	second, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if err != nil {
		t.Fatalf("second Recommend() error: %v", err)
	}
	if !second.FromCache {
		t.Error("second response not served from cache")
	}
	if collaborative.calls.Load() != 1 {
		t.Errorf("generator ran %d times, want 1 (second request cached)", collaborative.calls.Load())
	}
	if len(second.Items) != len(first.Items) {
		t.Errorf("cached items = %d, want %d", len(second.Items), len(first.Items))
	}
}

func TestRecommendCustomWeightsBypassCache(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	collaborative := &fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
		candidate(StrategyCollaborative, "D", 9),
	}}
	engine := newTestEngine(t, relational, profiles, collaborative)

	req := &Request{UserID: 1, Weights: map[string]float64{StrategyCollaborative: 1}}
	if _, err := engine.Recommend(context.Background(), req); err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if profiles.putCalls.Load() != 0 {
		t.Error("custom-weight request wrote to the cache")
	}

	if _, err := engine.Recommend(context.Background(), req); err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if collaborative.calls.Load() != 2 {
		t.Errorf("generator ran %d times, want 2 (no cache for custom weights)", collaborative.calls.Load())
	}
}

func TestRecommendWeightOverrideSelectsStrategies(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	content := &fakeGenerator{name: StrategyContentBased, candidates: []CandidateScore{
		candidate(StrategyContentBased, "D", 0.9),
		candidate(StrategyContentBased, "E", 0.5),
		candidate(StrategyContentBased, "F", 0.2),
	}}
	collaborative := &fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
		candidate(StrategyCollaborative, "F", 10),
	}}
	engine := newTestEngine(t, relational, profiles, content, collaborative)

	resp, err := engine.Recommend(context.Background(), &Request{
		UserID:  1,
		Weights: map[string]float64{StrategyContentBased: 1},
	})
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}

	if collaborative.calls.Load() != 0 {
		t.Error("zero-weight strategy still ran")
	}
	want := []string{"D", "E", "F"}
	if len(resp.Items) != len(want) {
		t.Fatalf("items = %d, want %d", len(resp.Items), len(want))
	}
	for i, isbn := range want {
		if resp.Items[i].ISBN != isbn {
			t.Errorf("item %d = %s, want %s (content-only order)", i, resp.Items[i].ISBN, isbn)
		}
	}
}

func TestRecommendDropsVanishedBooks(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	collaborative := &fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
		candidate(StrategyCollaborative, "D", 9),
		candidate(StrategyCollaborative, "GONE", 10),
	}}
	engine := newTestEngine(t, relational, profiles, collaborative)

	resp, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	for _, item := range resp.Items {
		if item.ISBN == "GONE" {
			t.Error("vanished ISBN survived into the response")
		}
	}
	if len(resp.Items) != 1 {
		t.Errorf("items = %d, want 1", len(resp.Items))
	}
}

func TestRecommendAuthorCapApplied(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	relational.books = map[string]*models.Book{
		"K1": {ISBN: "K1", Title: "K1", Authors: []string{"king"}, PrimaryGenre: "g1"},
		"K2": {ISBN: "K2", Title: "K2", Authors: []string{"king"}, PrimaryGenre: "g2"},
		"K3": {ISBN: "K3", Title: "K3", Authors: []string{"king"}, PrimaryGenre: "g3"},
		"X1": {ISBN: "X1", Title: "X1", Authors: []string{"austen"}, PrimaryGenre: "g4"},
	}
	collaborative := &fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
		candidate(StrategyCollaborative, "K1", 10),
		candidate(StrategyCollaborative, "K2", 9),
		candidate(StrategyCollaborative, "K3", 8),
		candidate(StrategyCollaborative, "X1", 7),
	}}
	engine := newTestEngine(t, relational, profiles, collaborative)

	resp, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}

	perAuthor := 0
	for _, item := range resp.Items {
		if relational.books[item.ISBN].PrimaryAuthor() == "king" {
			perAuthor++
		}
	}
	if perAuthor > 2 {
		t.Errorf("%d items by the same author, want at most 2", perAuthor)
	}
}

func TestRecommendCancelledContextSkipsCacheWrite(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	ctx, cancel := context.WithCancel(context.Background())

	collaborative := &fakeGenerator{
		name: StrategyCollaborative,
		candidates: []CandidateScore{
			candidate(StrategyCollaborative, "D", 9),
		},
		onGenerate: cancel,
	}
	engine := newTestEngine(t, relational, profiles, collaborative)

	// The fakes ignore ctx, so the pipeline completes; only the cache
	// write must observe the cancellation.
	_, _ = engine.Recommend(ctx, &Request{UserID: 1})
	if profiles.putCalls.Load() != 0 {
		t.Error("cache written despite cancelled request context")
	}
}

func TestRecommendReasonsPresent(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	collaborative := &fakeGenerator{name: StrategyCollaborative, candidates: []CandidateScore{
		{ISBN: "D", RawScore: 9, Strategy: StrategyCollaborative, Evidence: Evidence{SupportCount: 4}},
	}}
	engine := newTestEngine(t, relational, profiles, collaborative)

	resp, err := engine.Recommend(context.Background(), &Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if resp.Items[0].Reason == "" {
		t.Error("item missing reason annotation")
	}
	if len(resp.Items[0].Breakdown) == 0 {
		t.Error("item missing score breakdown")
	}
}

func TestExplainFromCachedRecord(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	profiles.cached = map[int64]*models.RecommendationRecord{
		1: {
			UserID: 1,
			Items: []models.RecommendedBook{
				{ISBN: "D", Score: 0.8, Reason: "collaborative: 4 readers with similar taste rated this highly"},
			},
			ComputedAt: time.Now(),
			ExpiresAt:  time.Now().Add(time.Hour),
		},
	}
	engine := newTestEngine(t, relational, profiles,
		&fakeGenerator{name: StrategyCollaborative})

	item, err := engine.Explain(context.Background(), 1, "D")
	if err != nil {
		t.Fatalf("Explain() error: %v", err)
	}
	if item.Reason == "" {
		t.Error("Explain() returned empty reason")
	}

	if _, err := engine.Explain(context.Background(), 1, "ZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Explain() for unknown isbn error = %v, want ErrNotFound", err)
	}
}

func TestNewEngineRejectsDuplicates(t *testing.T) {
	t.Parallel()

	relational, profiles := warmFixture()
	_, err := NewEngine(DefaultConfig(), relational, profiles, []Generator{
		&fakeGenerator{name: StrategyTrending},
		&fakeGenerator{name: StrategyTrending},
	}, zerolog.Nop())
	if err == nil {
		t.Error("NewEngine() accepted duplicate strategies")
	}

	_, err = NewEngine(DefaultConfig(), relational, profiles, []Generator{
		&fakeGenerator{name: "bogus"},
	}, zerolog.Nop())
	if err == nil {
		t.Error("NewEngine() accepted unknown strategy")
	}
}
