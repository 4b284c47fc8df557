// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package diversity implements the greedy diversity filter applied to a
// ranked recommendation list before it is returned.
//
// The filter walks the list in rank order and admits each entry unless
// doing so would exceed the per-author or per-genre cap, stopping once k
// entries are selected. Skipped entries are gone for good; the walk never
// backtracks, which keeps the result deterministic and order-preserving.
package diversity

import "math"

// Entry is one ranked candidate as seen by the filter: identity plus the
// two attributes the caps apply to. Empty attributes are exempt from their
// cap rather than pooled into a shared bucket.
type Entry struct {
	ISBN   string
	Author string
	Genre  string
}

// Config holds the caps applied at full strength.
type Config struct {
	// MaxPerAuthor caps selected entries per primary author.
	MaxPerAuthor int

	// MaxPerGenre caps selected entries per primary genre.
	MaxPerGenre int
}

// Filter applies author and genre caps to ranked lists.
type Filter struct {
	config Config
}

// NewFilter creates a diversity filter. Non-positive caps fall back to the
// conventional defaults (2 per author, 3 per genre).
func NewFilter(config Config) *Filter {
	if config.MaxPerAuthor < 1 {
		config.MaxPerAuthor = 2
	}
	if config.MaxPerGenre < 1 {
		config.MaxPerGenre = 3
	}
	return &Filter{config: config}
}

// Apply selects up to k entries from the ranked list under the caps scaled
// by strength.
//
// Strength is in [0,1]: at 0 the filter is disabled and the top k entries
// pass through unchanged; at 1 the configured caps apply exactly; in
// between the caps relax proportionally (cap/strength, rounded up), so a
// half-strength filter tolerates twice the repetition.
func (f *Filter) Apply(ranked []Entry, strength float64, k int) []Entry {
	if k <= 0 {
		return nil
	}
	if strength <= 0 {
		if len(ranked) > k {
			ranked = ranked[:k]
		}
		out := make([]Entry, len(ranked))
		copy(out, ranked)
		return out
	}
	if strength > 1 {
		strength = 1
	}

	perAuthor := scaledCap(f.config.MaxPerAuthor, strength)
	perGenre := scaledCap(f.config.MaxPerGenre, strength)

	authorCount := make(map[string]int)
	genreCount := make(map[string]int)

	selected := make([]Entry, 0, k)
	for _, entry := range ranked {
		if len(selected) == k {
			break
		}
		if entry.Author != "" && authorCount[entry.Author] >= perAuthor {
			continue
		}
		if entry.Genre != "" && genreCount[entry.Genre] >= perGenre {
			continue
		}

		selected = append(selected, entry)
		if entry.Author != "" {
			authorCount[entry.Author]++
		}
		if entry.Genre != "" {
			genreCount[entry.Genre]++
		}
	}
	return selected
}

// scaledCap relaxes a full-strength cap by the inverse of strength.
func scaledCap(cap int, strength float64) int {
	return int(math.Ceil(float64(cap) / strength))
}
