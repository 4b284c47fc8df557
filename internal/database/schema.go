// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package database

import (
	"context"
	"fmt"
)

// Schema notes
//
// books carries authors, root_genres, and subgenres both normalized
// (book_authors, book_genres) and denormalized as pipe-delimited columns.
// The normalized tables serve the genre-filter and taxonomy queries; the
// denormalized columns let candidate queries return a complete book row
// without aggregate joins. The ingestion pipeline writes both.
//
// ratings.user_seq and ratings.book_seq are per-user and per-book monotone
// sequence numbers assigned at ingestion; trending queries use book_seq as
// the activity ordering.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id   BIGINT PRIMARY KEY,
		age       INTEGER,
		age_group VARCHAR,
		gender    VARCHAR,
		country   VARCHAR,
		latitude  DOUBLE,
		longitude DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		isbn             VARCHAR PRIMARY KEY,
		title            VARCHAR NOT NULL,
		authors          VARCHAR,
		publication_year INTEGER,
		publisher        VARCHAR,
		primary_genre    VARCHAR,
		root_genres      VARCHAR,
		subgenres        VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS book_authors (
		isbn     VARCHAR NOT NULL,
		position INTEGER NOT NULL,
		author   VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS book_genres (
		isbn    VARCHAR NOT NULL,
		genre   VARCHAR NOT NULL,
		is_root BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id  BIGINT NOT NULL,
		isbn     VARCHAR NOT NULL,
		value    INTEGER NOT NULL,
		user_seq BIGINT,
		book_seq BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ratings_isbn ON ratings(isbn)`,
	`CREATE INDEX IF NOT EXISTS idx_book_genres_genre ON book_genres(genre)`,
	`CREATE INDEX IF NOT EXISTS idx_users_demo ON users(age_group, country)`,
}

// InitSchema creates tables and indexes if absent. Safe to run on every
// startup.
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	db.logger.Debug().Msg("schema initialized")
	return nil
}
