// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package api exposes the recommendation engine over HTTP.
//
// Routing uses Chi with CORS, per-IP rate limiting, and Prometheus
// request metrics. All payloads travel in the models.APIResponse
// envelope; domain errors map onto stable machine-readable codes so
// clients can branch on Error.Code rather than parsing messages.
package api
