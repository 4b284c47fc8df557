// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package docstore implements the document repository over embedded
// BadgerDB: user preference profiles, per-book metric documents, and the
// TTL recommendation cache. Documents are stored as JSON under typed key
// prefixes.
//
// Expired recommendation records are a cache miss the moment their TTL
// passes; the periodic sweeper only reclaims the space. The two never race
// into serving stale data because expiry is checked on every read.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/metrics"
	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// Key prefixes for BadgerDB storage.
const (
	profileKeyPrefix = "profile:"
	metricsKeyPrefix = "metrics:"
	recKeyPrefix     = "rec:"
)

// Config holds document store configuration.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string `json:"path" koanf:"path"`

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool `json:"in_memory" koanf:"in_memory"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{Path: "bookrec-docs"}
}

// Store is the Badger-backed document repository.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

var _ recommend.ProfileRepository = (*Store)(nil)

// New opens the document store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	storeLogger := logger.With().Str("component", "docstore").Logger()

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: storeLogger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// profileKey builds the key for a user's preference document.
func profileKey(userID int64) []byte {
	return []byte(profileKeyPrefix + strconv.FormatInt(userID, 10))
}

// metricsKey builds the key for a book's metrics document.
func metricsKey(isbn string) []byte {
	return []byte(metricsKeyPrefix + isbn)
}

// recKey builds the key for a user's recommendation record.
func recKey(userID int64) []byte {
	return []byte(recKeyPrefix + strconv.FormatInt(userID, 10))
}

// UserProfile returns the preference document for one user, or
// recommend.ErrNotFound when the user has no profile.
func (s *Store) UserProfile(_ context.Context, userID int64) (*models.UserProfile, error) {
	var profile models.UserProfile

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("profile for user %d: %w", userID, recommend.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// PutUserProfile stores a preference document, replacing any previous one.
// Called by the enrichment pipeline, not the request path.
func (s *Store) PutUserProfile(_ context.Context, profile *models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.UserID), data)
	})
}

// BookMetrics bulk-loads metric documents. ISBNs without a document are
// simply omitted from the result map.
func (s *Store) BookMetrics(_ context.Context, isbns []string) (map[string]*models.BookMetrics, error) {
	out := make(map[string]*models.BookMetrics, len(isbns))

	err := s.db.View(func(txn *badger.Txn) error {
		for _, isbn := range isbns {
			item, err := txn.Get(metricsKey(isbn))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get metrics for %s: %w", isbn, err)
			}

			var m models.BookMetrics
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("unmarshal metrics for %s: %w", isbn, err)
			}
			out[isbn] = &m
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutBookMetrics stores metric documents in one transaction. Called by the
// enrichment pipeline, not the request path.
func (s *Store) PutBookMetrics(_ context.Context, docs []*models.BookMetrics) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, m := range docs {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal metrics for %s: %w", m.ISBN, err)
			}
			if err := txn.Set(metricsKey(m.ISBN), data); err != nil {
				return fmt.Errorf("set metrics for %s: %w", m.ISBN, err)
			}
		}
		return nil
	})
}

// CachedRecommendation returns the user's recommendation record, or
// recommend.ErrNotFound when absent or expired. An expired record still on
// disk is indistinguishable from an absent one.
func (s *Store) CachedRecommendation(_ context.Context, userID int64) (*models.RecommendationRecord, error) {
	var rec models.RecommendationRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("recommendation for user %d: %w", userID, recommend.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get recommendation: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}

	if rec.Expired(time.Now()) {
		return nil, fmt.Errorf("recommendation for user %d expired: %w", userID, recommend.ErrNotFound)
	}
	return &rec, nil
}

// PutRecommendation stores a recommendation record, unconditionally
// replacing any previous record for the same user (last writer wins). The
// write is a single transaction, so readers never observe a partial record.
func (s *Store) PutRecommendation(ctx context.Context, rec *models.RecommendationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recKey(rec.UserID), data)
	})
}

// DeleteExpired removes recommendation records whose TTL has passed and
// returns how many were reclaimed. Runs off the request path on the
// sweeper schedule.
func (s *Store) DeleteExpired(_ context.Context) (int, error) {
	now := time.Now()

	var expired [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec models.RecommendationRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshal record %s: %w", item.Key(), err)
			}
			if rec.Expired(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range expired {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete record %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		// The transaction rolled back; nothing was removed.
		return 0, err
	}
	deleted := len(expired)

	metrics.CacheSweptRecords.Add(float64(deleted))
	s.logger.Debug().Int("deleted", deleted).Msg("expired recommendation records swept")
	return deleted, nil
}
