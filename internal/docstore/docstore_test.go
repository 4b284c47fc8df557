// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(Config{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return store
}

func TestUserProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := &models.UserProfile{
		UserID:              42,
		ReaderClass:         "regular",
		RatingCount:         17,
		RatingMean:          7.4,
		PreferredRootGenres: []string{"fantasy", "horror"},
		PreferredAuthors:    []string{"King, Stephen"},
		UpdatedAt:           time.Now().UTC(),
	}
	if err := store.PutUserProfile(ctx, profile); err != nil {
		t.Fatalf("PutUserProfile() error: %v", err)
	}

	got, err := store.UserProfile(ctx, 42)
	if err != nil {
		t.Fatalf("UserProfile() error: %v", err)
	}
	if got.ReaderClass != "regular" || got.RatingCount != 17 {
		t.Errorf("UserProfile() = %+v, want stored document", got)
	}
	if len(got.PreferredRootGenres) != 2 || got.PreferredRootGenres[0] != "fantasy" {
		t.Errorf("PreferredRootGenres = %v, want order preserved", got.PreferredRootGenres)
	}
}

func TestUserProfileAbsent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UserProfile(context.Background(), 999)
	if !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("UserProfile() error = %v, want ErrNotFound", err)
	}
}

func TestBookMetricsOmitsMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := []*models.BookMetrics{
		{ISBN: "111", RatingCount: 10, RatingMean: 8.0, PopularityScore: 0.7},
		{ISBN: "222", RatingCount: 3, RatingMean: 6.5, PopularityScore: 0.2},
	}
	if err := store.PutBookMetrics(ctx, docs); err != nil {
		t.Fatalf("PutBookMetrics() error: %v", err)
	}

	got, err := store.BookMetrics(ctx, []string{"111", "222", "333"})
	if err != nil {
		t.Fatalf("BookMetrics() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("BookMetrics() returned %d docs, want 2", len(got))
	}
	if _, present := got["333"]; present {
		t.Error("BookMetrics() returned a document for an unknown ISBN")
	}
	if got["111"].PopularityScore != 0.7 {
		t.Errorf("PopularityScore = %f, want 0.7", got["111"].PopularityScore)
	}
}

func record(userID int64, ttl time.Duration) *models.RecommendationRecord {
	now := time.Now().UTC()
	return &models.RecommendationRecord{
		UserID: userID,
		Items: []models.RecommendedBook{
			{ISBN: "111", Score: 0.9, Reason: "collaborative: 5 readers with similar taste rated this highly"},
		},
		ModelVersion: "hybrid-v1",
		ComputedAt:   now,
		ExpiresAt:    now.Add(ttl),
	}
}

func TestCachedRecommendationFresh(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutRecommendation(ctx, record(7, time.Hour)); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}

	got, err := store.CachedRecommendation(ctx, 7)
	if err != nil {
		t.Fatalf("CachedRecommendation() error: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].ISBN != "111" {
		t.Errorf("CachedRecommendation() = %+v, want stored record", got)
	}
}

func TestCachedRecommendationExpiredIsMiss(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutRecommendation(ctx, record(7, -time.Minute)); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}

	_, err := store.CachedRecommendation(ctx, 7)
	if !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("CachedRecommendation() error = %v, want ErrNotFound for expired record", err)
	}
}

func TestPutRecommendationLastWriterWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := record(7, time.Hour)
	if err := store.PutRecommendation(ctx, first); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}

	second := record(7, time.Hour)
	second.Items = []models.RecommendedBook{{ISBN: "999", Score: 0.5}}
	if err := store.PutRecommendation(ctx, second); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}

	got, err := store.CachedRecommendation(ctx, 7)
	if err != nil {
		t.Fatalf("CachedRecommendation() error: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].ISBN != "999" {
		t.Errorf("CachedRecommendation() = %+v, want the second record", got)
	}
}

func TestPutRecommendationCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.PutRecommendation(ctx, record(7, time.Hour)); err == nil {
		t.Fatal("PutRecommendation() with cancelled context succeeded, want error")
	}
	_, err := store.CachedRecommendation(context.Background(), 7)
	if !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("record written despite cancelled context: err = %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutRecommendation(ctx, record(1, time.Hour)); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}
	if err := store.PutRecommendation(ctx, record(2, -time.Minute)); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}
	if err := store.PutRecommendation(ctx, record(3, -time.Hour)); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}

	deleted, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", deleted)
	}

	if _, err := store.CachedRecommendation(ctx, 1); err != nil {
		t.Errorf("fresh record removed by sweep: %v", err)
	}

	again, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() second run error: %v", err)
	}
	if again != 0 {
		t.Errorf("DeleteExpired() second run = %d, want 0", again)
	}
}

func TestDeleteExpiredReportsZeroOnFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutRecommendation(ctx, record(4, -time.Minute)); err != nil {
		t.Fatalf("PutRecommendation() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// A sweep that cannot commit must not claim deletions.
	deleted, err := store.DeleteExpired(ctx)
	if err == nil {
		t.Fatal("DeleteExpired() on closed store succeeded, want error")
	}
	if deleted != 0 {
		t.Errorf("DeleteExpired() = %d with error, want 0", deleted)
	}
}
