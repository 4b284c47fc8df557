// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// UserByID returns the user row, with HasRatings resolved in the same
// round trip.
func (db *DB) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	return execute(ctx, db, "user_by_id", func(ctx context.Context) (*models.User, error) {
		query := `
			SELECT u.user_id,
			       u.age,
			       COALESCE(u.age_group, ''),
			       COALESCE(u.gender, ''),
			       COALESCE(u.country, ''),
			       u.latitude,
			       u.longitude,
			       EXISTS (SELECT 1 FROM ratings r WHERE r.user_id = u.user_id)
			FROM users u
			WHERE u.user_id = ?`

		var (
			user models.User
			age  sql.NullInt32
			lat  sql.NullFloat64
			lon  sql.NullFloat64
		)
		err := db.conn.QueryRowContext(ctx, query, userID).Scan(
			&user.UserID, &age, &user.AgeGroup, &user.Gender, &user.Country,
			&lat, &lon, &user.HasRatings,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, recommend.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		if age.Valid {
			v := int(age.Int32)
			user.Age = &v
		}
		if lat.Valid && lon.Valid {
			user.Latitude = &lat.Float64
			user.Longitude = &lon.Float64
		}
		return &user, nil
	})
}

// RatingsByUser returns the user's rating history, most recent first.
func (db *DB) RatingsByUser(ctx context.Context, userID int64, limit int) ([]models.Rating, error) {
	return execute(ctx, db, "ratings_by_user", func(ctx context.Context) ([]models.Rating, error) {
		query := `
			SELECT user_id, isbn, value, COALESCE(user_seq, 0), COALESCE(book_seq, 0)
			FROM ratings
			WHERE user_id = ?
			ORDER BY user_seq DESC, isbn
			LIMIT ?`

		rows, err := db.conn.QueryContext(ctx, query, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("query ratings: %w", err)
		}
		defer closeQuietly(rows)

		var ratings []models.Rating
		for rows.Next() {
			var r models.Rating
			if err := rows.Scan(&r.UserID, &r.ISBN, &r.Value, &r.UserSeq, &r.BookSeq); err != nil {
				return nil, fmt.Errorf("scan rating: %w", err)
			}
			ratings = append(ratings, r)
		}
		return ratings, rows.Err()
	})
}

// Rating returns one user's rating of one book.
func (db *DB) Rating(ctx context.Context, userID int64, isbn string) (*models.Rating, error) {
	return execute(ctx, db, "rating", func(ctx context.Context) (*models.Rating, error) {
		query := `
			SELECT user_id, isbn, value, COALESCE(user_seq, 0), COALESCE(book_seq, 0)
			FROM ratings
			WHERE user_id = ? AND isbn = ?`

		var r models.Rating
		err := db.conn.QueryRowContext(ctx, query, userID, isbn).Scan(
			&r.UserID, &r.ISBN, &r.Value, &r.UserSeq, &r.BookSeq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rating %d/%s: %w", userID, isbn, recommend.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		return &r, nil
	})
}

// BooksByISBN bulk-loads catalog entries. Unknown ISBNs are omitted from
// the result map.
func (db *DB) BooksByISBN(ctx context.Context, isbns []string) (map[string]*models.Book, error) {
	if len(isbns) == 0 {
		return map[string]*models.Book{}, nil
	}
	return execute(ctx, db, "books_by_isbn", func(ctx context.Context) (map[string]*models.Book, error) {
		query := fmt.Sprintf(`
			SELECT isbn, title,
			       COALESCE(authors, ''),
			       COALESCE(publication_year, 0),
			       COALESCE(publisher, ''),
			       COALESCE(primary_genre, ''),
			       COALESCE(root_genres, ''),
			       COALESCE(subgenres, '')
			FROM books
			WHERE isbn IN (%s)`, placeholders(len(isbns)))

		args := make([]any, len(isbns))
		for i, isbn := range isbns {
			args[i] = isbn
		}

		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query books: %w", err)
		}
		defer closeQuietly(rows)

		books := make(map[string]*models.Book, len(isbns))
		for rows.Next() {
			book, err := scanBook(rows)
			if err != nil {
				return nil, err
			}
			books[book.ISBN] = book
		}
		return books, rows.Err()
	})
}

// TopCoRaters returns users sharing at least minShared positive ratings
// with userID, strongest overlap first.
func (db *DB) TopCoRaters(ctx context.Context, userID int64, minShared, limit int) ([]recommend.CoRater, error) {
	return execute(ctx, db, "top_co_raters", func(ctx context.Context) ([]recommend.CoRater, error) {
		query := `
			SELECT r2.user_id, COUNT(*) AS shared
			FROM ratings r1
			JOIN ratings r2 ON r1.isbn = r2.isbn AND r2.user_id <> r1.user_id
			WHERE r1.user_id = ?
			  AND r1.value >= ?
			  AND r2.value >= ?
			GROUP BY r2.user_id
			HAVING COUNT(*) >= ?
			ORDER BY shared DESC, r2.user_id
			LIMIT ?`

		rows, err := db.conn.QueryContext(ctx, query,
			userID, models.PositiveRatingThreshold, models.PositiveRatingThreshold,
			minShared, limit)
		if err != nil {
			return nil, fmt.Errorf("query co-raters: %w", err)
		}
		defer closeQuietly(rows)

		var neighbors []recommend.CoRater
		for rows.Next() {
			var n recommend.CoRater
			if err := rows.Scan(&n.UserID, &n.SharedCount); err != nil {
				return nil, fmt.Errorf("scan co-rater: %w", err)
			}
			neighbors = append(neighbors, n)
		}
		return neighbors, rows.Err()
	})
}

// CandidatesByGenre returns books whose root genres intersect genres,
// excluding the given ISBNs.
func (db *DB) CandidatesByGenre(ctx context.Context, genres, exclude []string, limit int) ([]models.Book, error) {
	if len(genres) == 0 {
		return nil, nil
	}
	return execute(ctx, db, "candidates_by_genre", func(ctx context.Context) ([]models.Book, error) {
		query := fmt.Sprintf(`
			SELECT DISTINCT b.isbn, b.title,
			       COALESCE(b.authors, ''),
			       COALESCE(b.publication_year, 0),
			       COALESCE(b.publisher, ''),
			       COALESCE(b.primary_genre, ''),
			       COALESCE(b.root_genres, ''),
			       COALESCE(b.subgenres, '')
			FROM books b
			JOIN book_genres bg ON bg.isbn = b.isbn AND bg.is_root
			WHERE bg.genre IN (%s)`, placeholders(len(genres)))

		args := make([]any, 0, len(genres)+len(exclude)+1)
		for _, genre := range genres {
			args = append(args, genre)
		}
		if len(exclude) > 0 {
			query += fmt.Sprintf(" AND b.isbn NOT IN (%s)", placeholders(len(exclude)))
			for _, isbn := range exclude {
				args = append(args, isbn)
			}
		}
		query += " ORDER BY b.isbn LIMIT ?"
		args = append(args, limit)

		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query genre candidates: %w", err)
		}
		defer closeQuietly(rows)

		var books []models.Book
		for rows.Next() {
			book, err := scanBook(rows)
			if err != nil {
				return nil, err
			}
			books = append(books, *book)
		}
		return books, rows.Err()
	})
}

// UsersByDemographic returns users matching the cohort attributes. Empty
// attribute values are not filtered on.
func (db *DB) UsersByDemographic(ctx context.Context, ageGroup, gender, country string, limit int) ([]int64, error) {
	return execute(ctx, db, "users_by_demographic", func(ctx context.Context) ([]int64, error) {
		query := "SELECT user_id FROM users WHERE 1=1"
		var args []any
		if ageGroup != "" {
			query += " AND age_group = ?"
			args = append(args, ageGroup)
		}
		if gender != "" {
			query += " AND gender = ?"
			args = append(args, gender)
		}
		if country != "" {
			query += " AND country = ?"
			args = append(args, country)
		}
		query += " ORDER BY user_id LIMIT ?"
		args = append(args, limit)

		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query demographic cohort: %w", err)
		}
		defer closeQuietly(rows)

		return scanUserIDs(rows)
	})
}

// UsersNear returns users within radiusKm of the given point, nearest
// first, using the haversine great-circle distance.
func (db *DB) UsersNear(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]int64, error) {
	return execute(ctx, db, "users_near", func(ctx context.Context) ([]int64, error) {
		query := `
			SELECT user_id
			FROM (
				SELECT user_id,
				       2 * 6371 * asin(sqrt(
				           pow(sin(radians(latitude - ?) / 2), 2) +
				           cos(radians(?)) * cos(radians(latitude)) *
				           pow(sin(radians(longitude - ?) / 2), 2)
				       )) AS distance_km
				FROM users
				WHERE latitude IS NOT NULL AND longitude IS NOT NULL
			)
			WHERE distance_km <= ?
			ORDER BY distance_km, user_id
			LIMIT ?`

		rows, err := db.conn.QueryContext(ctx, query, lat, lat, lon, radiusKm, limit)
		if err != nil {
			return nil, fmt.Errorf("query nearby users: %w", err)
		}
		defer closeQuietly(rows)

		return scanUserIDs(rows)
	})
}

// BooksRatedBy aggregates ratings >= minRating among userIDs, keeping books
// with at least minSupport such ratings.
func (db *DB) BooksRatedBy(ctx context.Context, userIDs []int64, minRating, minSupport, limit int) ([]recommend.BookAggregate, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return execute(ctx, db, "books_rated_by", func(ctx context.Context) ([]recommend.BookAggregate, error) {
		query := fmt.Sprintf(`
			SELECT isbn, AVG(value) AS mean_rating, COUNT(*) AS support
			FROM ratings
			WHERE user_id IN (%s)
			  AND value >= ?
			GROUP BY isbn
			HAVING COUNT(*) >= ?
			ORDER BY mean_rating DESC, support DESC, isbn
			LIMIT ?`, placeholders(len(userIDs)))

		args := make([]any, 0, len(userIDs)+3)
		for _, id := range userIDs {
			args = append(args, id)
		}
		args = append(args, minRating, minSupport, limit)

		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query rated-by aggregates: %w", err)
		}
		defer closeQuietly(rows)

		return scanAggregates(rows)
	})
}

// RecentlyActiveBooks returns books with at least minCount ratings in their
// trailing windowPct share of rating activity.
func (db *DB) RecentlyActiveBooks(ctx context.Context, windowPct float64, minCount, limit int) ([]recommend.ActiveBook, error) {
	return execute(ctx, db, "recently_active_books", func(ctx context.Context) ([]recommend.ActiveBook, error) {
		query := `
			WITH totals AS (
				SELECT isbn, MAX(book_seq) AS max_seq, COUNT(*) AS total
				FROM ratings
				GROUP BY isbn
			)
			SELECT r.isbn, COUNT(*) AS recent, MAX(t.total)
			FROM ratings r
			JOIN totals t ON r.isbn = t.isbn
			WHERE r.book_seq > t.max_seq * (1 - ?)
			GROUP BY r.isbn
			HAVING COUNT(*) >= ?
			ORDER BY recent DESC, r.isbn
			LIMIT ?`

		rows, err := db.conn.QueryContext(ctx, query, windowPct, minCount, limit)
		if err != nil {
			return nil, fmt.Errorf("query recently active books: %w", err)
		}
		defer closeQuietly(rows)

		var active []recommend.ActiveBook
		for rows.Next() {
			var a recommend.ActiveBook
			if err := rows.Scan(&a.ISBN, &a.RecentCount, &a.TotalCount); err != nil {
				return nil, fmt.Errorf("scan active book: %w", err)
			}
			active = append(active, a)
		}
		return active, rows.Err()
	})
}

// GloballyPopularBooks returns the most-rated well-rated books, ranked by
// rating volume times mean quality.
func (db *DB) GloballyPopularBooks(ctx context.Context, limit int) ([]recommend.BookAggregate, error) {
	return execute(ctx, db, "globally_popular_books", func(ctx context.Context) ([]recommend.BookAggregate, error) {
		query := `
			SELECT isbn, AVG(value) AS mean_rating, COUNT(*) AS support
			FROM ratings
			GROUP BY isbn
			HAVING COUNT(*) >= 5
			ORDER BY support * mean_rating DESC, isbn
			LIMIT ?`

		rows, err := db.conn.QueryContext(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("query popular books: %w", err)
		}
		defer closeQuietly(rows)

		return scanAggregates(rows)
	})
}

// metricsShrinkage dampens the quality of thinly rated books toward the
// corpus mean when computing popularity.
const metricsShrinkage = 10.0

// metricsActivityWindowPct is the trailing share of each book's rating
// sequence counted as recent activity, matching the trending default.
const metricsActivityWindowPct = 0.2

// BookRatingAggregates recomputes per-book rating statistics for the
// metrics refresh job. Quality is shrunk toward the corpus mean so that a
// handful of tens cannot outrank a thousand eights. Recent activity is the
// fraction of the book's ratings inside its trailing book_seq window.
func (db *DB) BookRatingAggregates(ctx context.Context) ([]models.BookMetrics, error) {
	return execute(ctx, db, "book_rating_aggregates", func(ctx context.Context) ([]models.BookMetrics, error) {
		query := `
			WITH totals AS (
				SELECT isbn, MAX(COALESCE(book_seq, 0)) AS max_seq
				FROM ratings
				GROUP BY isbn
			)
			SELECT r.isbn,
			       COUNT(*) AS rating_count,
			       AVG(r.value) AS rating_mean,
			       COALESCE(stddev_pop(r.value), 0) AS rating_std,
			       SUM(CASE WHEN COALESCE(r.book_seq, 0) > t.max_seq * (1 - ?) THEN 1 ELSE 0 END) AS recent,
			       (SELECT AVG(value) FROM ratings) AS global_mean
			FROM ratings r
			JOIN totals t ON r.isbn = t.isbn
			GROUP BY r.isbn, t.max_seq
			ORDER BY r.isbn`

		rows, err := db.conn.QueryContext(ctx, query, metricsActivityWindowPct)
		if err != nil {
			return nil, fmt.Errorf("query rating aggregates: %w", err)
		}
		defer closeQuietly(rows)

		var metrics []models.BookMetrics
		for rows.Next() {
			var (
				m          models.BookMetrics
				recent     int
				globalMean float64
			)
			if err := rows.Scan(&m.ISBN, &m.RatingCount, &m.RatingMean, &m.RatingStd,
				&recent, &globalMean); err != nil {
				return nil, fmt.Errorf("scan rating aggregate: %w", err)
			}

			n := float64(m.RatingCount)
			shrunk := (n*m.RatingMean + metricsShrinkage*globalMean) / (n + metricsShrinkage)
			m.PopularityScore = (n / (n + metricsShrinkage)) * (shrunk / 10)
			m.RatingCategory = ratingCategory(m.RatingMean)
			m.PopularityCategory = popularityCategory(m.RatingCount)
			m.RecentActivity = float64(recent) / n
			metrics = append(metrics, m)
		}
		return metrics, rows.Err()
	})
}

func ratingCategory(mean float64) string {
	switch {
	case mean < 4:
		return "poor"
	case mean < 6.5:
		return "average"
	case mean < 8:
		return "good"
	default:
		return "excellent"
	}
}

func popularityCategory(count int) string {
	switch {
	case count < 10:
		return "niche"
	case count < 50:
		return "known"
	case count < 200:
		return "popular"
	default:
		return "bestseller"
	}
}

// scanBook scans one denormalized book row.
func scanBook(rows *sql.Rows) (*models.Book, error) {
	var (
		book      models.Book
		authors   string
		rootGenre string
		subgenres string
	)
	if err := rows.Scan(&book.ISBN, &book.Title, &authors, &book.PublicationYear,
		&book.Publisher, &book.PrimaryGenre, &rootGenre, &subgenres); err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	book.Authors = splitPipe(authors)
	book.RootGenres = splitPipe(rootGenre)
	book.Subgenres = splitPipe(subgenres)
	return &book, nil
}

// scanUserIDs drains a single-column user_id result set.
func scanUserIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanAggregates drains a (isbn, mean, support) result set.
func scanAggregates(rows *sql.Rows) ([]recommend.BookAggregate, error) {
	var aggs []recommend.BookAggregate
	for rows.Next() {
		var agg recommend.BookAggregate
		if err := rows.Scan(&agg.ISBN, &agg.MeanRating, &agg.Support); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}
