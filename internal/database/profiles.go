// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package database

import (
	"context"
	"fmt"

	"github.com/mwhitten/bookrec/internal/models"
)

// Profile aggregation limits. Preference lists stay short so the
// content-based generator's genre fan-out remains bounded.
const (
	profilePreferenceLimit = 5
	profileFavoritesLimit  = 10
)

// UserProfileAggregates rebuilds preference documents from rating facts
// for the profile refresh job: per-user rating statistics plus ranked
// genre, author, and publisher preferences derived from positive ratings.
// Users with no ratings produce no document; their absence is what marks
// them cold.
func (db *DB) UserProfileAggregates(ctx context.Context) ([]models.UserProfile, error) {
	return execute(ctx, db, "user_profile_aggregates", func(ctx context.Context) ([]models.UserProfile, error) {
		profiles, order, err := db.userRatingStats(ctx)
		if err != nil {
			return nil, err
		}
		if len(order) == 0 {
			return nil, nil
		}

		rootGenres, subgenres, err := db.genrePreferences(ctx)
		if err != nil {
			return nil, err
		}
		authors, err := db.termPreferences(ctx, `
			SELECT r.user_id, ba.author, COUNT(*) AS cnt
			FROM ratings r
			JOIN book_authors ba ON ba.isbn = r.isbn
			WHERE r.value >= ?
			GROUP BY r.user_id, ba.author
			ORDER BY r.user_id, cnt DESC, ba.author`)
		if err != nil {
			return nil, err
		}
		publishers, err := db.termPreferences(ctx, `
			SELECT r.user_id, b.publisher, COUNT(*) AS cnt
			FROM ratings r
			JOIN books b ON b.isbn = r.isbn
			WHERE r.value >= ? AND b.publisher <> ''
			GROUP BY r.user_id, b.publisher
			ORDER BY r.user_id, cnt DESC, b.publisher`)
		if err != nil {
			return nil, err
		}
		favorites, err := db.favoriteBooks(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]models.UserProfile, 0, len(order))
		for _, userID := range order {
			p := profiles[userID]
			p.PreferredRootGenres = rootGenres[userID]
			p.PreferredSubgenres = subgenres[userID]
			p.PreferredAuthors = authors[userID]
			p.PreferredPublishers = publishers[userID]
			p.FavoriteBooks = favorites[userID]
			out = append(out, *p)
		}
		return out, nil
	})
}

// userRatingStats computes per-user count/mean/median/std and the critic
// bias against the corpus mean.
func (db *DB) userRatingStats(ctx context.Context) (map[int64]*models.UserProfile, []int64, error) {
	query := `
		SELECT user_id,
		       COUNT(*) AS rating_count,
		       AVG(value) AS rating_mean,
		       median(value) AS rating_median,
		       COALESCE(stddev_pop(value), 0) AS rating_std,
		       (SELECT AVG(value) FROM ratings) AS global_mean
		FROM ratings
		GROUP BY user_id
		ORDER BY user_id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query user rating stats: %w", err)
	}
	defer closeQuietly(rows)

	profiles := make(map[int64]*models.UserProfile)
	var order []int64
	for rows.Next() {
		var (
			p          models.UserProfile
			globalMean float64
		)
		if err := rows.Scan(&p.UserID, &p.RatingCount, &p.RatingMean,
			&p.RatingMedian, &p.RatingStd, &globalMean); err != nil {
			return nil, nil, fmt.Errorf("scan user rating stats: %w", err)
		}
		p.CriticBias = p.RatingMean - globalMean
		p.ReaderClass = readerClass(p.RatingCount)
		profiles[p.UserID] = &p
		order = append(order, p.UserID)
	}
	return profiles, order, rows.Err()
}

// genrePreferences ranks positively-rated genres per user, split into
// root genres and subgenres.
func (db *DB) genrePreferences(ctx context.Context) (roots, subs map[int64][]string, err error) {
	query := `
		SELECT r.user_id, bg.genre, bg.is_root, COUNT(*) AS cnt
		FROM ratings r
		JOIN book_genres bg ON bg.isbn = r.isbn
		WHERE r.value >= ?
		GROUP BY r.user_id, bg.genre, bg.is_root
		ORDER BY r.user_id, cnt DESC, bg.genre`

	rows, err := db.conn.QueryContext(ctx, query, models.PositiveRatingThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("query genre preferences: %w", err)
	}
	defer closeQuietly(rows)

	roots = make(map[int64][]string)
	subs = make(map[int64][]string)
	for rows.Next() {
		var (
			userID int64
			genre  string
			isRoot bool
			count  int
		)
		if err := rows.Scan(&userID, &genre, &isRoot, &count); err != nil {
			return nil, nil, fmt.Errorf("scan genre preference: %w", err)
		}
		target := subs
		if isRoot {
			target = roots
		}
		if len(target[userID]) < profilePreferenceLimit {
			target[userID] = append(target[userID], genre)
		}
	}
	return roots, subs, rows.Err()
}

// termPreferences runs a (user_id, term, count) ranking query and keeps
// the top terms per user. The query must order by user, count desc, term.
func (db *DB) termPreferences(ctx context.Context, query string) (map[int64][]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, models.PositiveRatingThreshold)
	if err != nil {
		return nil, fmt.Errorf("query term preferences: %w", err)
	}
	defer closeQuietly(rows)

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			userID int64
			term   string
			count  int
		)
		if err := rows.Scan(&userID, &term, &count); err != nil {
			return nil, fmt.Errorf("scan term preference: %w", err)
		}
		if len(out[userID]) < profilePreferenceLimit {
			out[userID] = append(out[userID], term)
		}
	}
	return out, rows.Err()
}

// favoriteBooks keeps each user's highest-rated books, most recent rating
// first within a value tie.
func (db *DB) favoriteBooks(ctx context.Context) (map[int64][]string, error) {
	query := `
		SELECT user_id, isbn
		FROM ratings
		WHERE value >= ?
		QUALIFY row_number() OVER (
			PARTITION BY user_id
			ORDER BY value DESC, COALESCE(user_seq, 0) DESC, isbn
		) <= ?
		ORDER BY user_id, value DESC, COALESCE(user_seq, 0) DESC, isbn`

	rows, err := db.conn.QueryContext(ctx, query,
		models.PositiveRatingThreshold, profileFavoritesLimit)
	if err != nil {
		return nil, fmt.Errorf("query favorite books: %w", err)
	}
	defer closeQuietly(rows)

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			userID int64
			isbn   string
		)
		if err := rows.Scan(&userID, &isbn); err != nil {
			return nil, fmt.Errorf("scan favorite book: %w", err)
		}
		out[userID] = append(out[userID], isbn)
	}
	return out, rows.Err()
}

// readerClass buckets engagement by rating volume.
func readerClass(count int) string {
	switch {
	case count == 0:
		return "inactive"
	case count < 10:
		return "casual"
	case count < 50:
		return "regular"
	default:
		return "power"
	}
}
