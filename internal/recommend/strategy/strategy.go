// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package strategy implements the candidate generators behind the hybrid
// recommendation engine. Each generator covers one retrieval strategy and
// satisfies recommend.Generator; the engine decides which ones run for a
// given user and blends their output.
package strategy

import (
	"github.com/mwhitten/bookrec/internal/recommend"
)

// dropRated removes already-rated books from an aggregate result set,
// preserving order.
func dropRated(aggs []recommend.BookAggregate, rated map[string]bool) []recommend.BookAggregate {
	kept := aggs[:0:0]
	for _, agg := range aggs {
		if !rated[agg.ISBN] {
			kept = append(kept, agg)
		}
	}
	return kept
}

// truncate caps a candidate list at limit.
func truncate(candidates []recommend.CandidateScore, limit int) []recommend.CandidateScore {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}
