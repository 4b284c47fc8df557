// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package recommend implements the hybrid book recommendation engine.
//
// # Architecture
//
// The engine orchestrates a set of candidate generators, each implementing
// one retrieval strategy:
//
//   - content_based: TF-IDF similarity between books the user liked and
//     candidates drawn from the user's preferred genres
//   - collaborative: books endorsed by co-raters who share positive ratings
//     with the user
//   - trending: recent rating activity weighted by shrunk quality
//   - geographic: favorites of the user's regional reader cluster
//   - cold_start: demographic cohort favorites with a global popularity
//     fallback, for users without usable history
//
// Generators run in parallel, each under its own timeout. A generator
// failure degrades the blend rather than failing the request; only when
// every eligible strategy fails does the engine return
// ErrRecommendationUnavailable.
//
// Candidate scores are min-max normalized per strategy, merged with
// configurable weights, passed through a diversity filter, annotated with
// explanations, and cached with a TTL in the document store.
//
// # Usage
//
//	engine := recommend.NewEngine(cfg, relational, profiles, generators, logger)
//	resp, err := engine.Recommend(ctx, &recommend.Request{UserID: 42, K: 10})
package recommend
