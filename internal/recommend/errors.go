// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import "errors"

// Sentinel errors shared across the engine and both stores. Callers match
// with errors.Is; the HTTP layer maps them onto status codes and error
// codes.
var (
	// ErrNotFound marks legitimate absence: an unknown user, a missing
	// profile document, an absent or expired cache record. It is not an
	// infrastructure failure and must not be retried.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest marks a malformed request (bad k, unknown or
	// negative weights, diversity outside [0,1]). Raised before any
	// repository access.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRepositoryUnavailable marks an infrastructure failure in a
	// backing store: connection loss, query timeout, open circuit
	// breaker. Retryable.
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrRecommendationUnavailable means every eligible strategy failed
	// for this request. Partial strategy failure degrades the blend and
	// does not raise this error.
	ErrRecommendationUnavailable = errors.New("recommendation unavailable")
)
