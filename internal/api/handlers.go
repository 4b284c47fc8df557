// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
	"github.com/mwhitten/bookrec/internal/validation"
)

// Recommender is the engine surface the handlers depend on.
type Recommender interface {
	Recommend(ctx context.Context, req *recommend.Request) (*recommend.Response, error)
	Explain(ctx context.Context, userID int64, isbn string) (*models.RecommendedBook, error)
}

// Handler serves the recommendation endpoints.
type Handler struct {
	recommender Recommender
	logger      zerolog.Logger
}

// NewHandler creates the API handler set.
func NewHandler(recommender Recommender, logger zerolog.Logger) *Handler {
	return &Handler{
		recommender: recommender,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// recommendationRequest is the POST /recommendations payload.
type recommendationRequest struct {
	UserID    int64              `json:"user_id" validate:"required,gt=0"`
	K         int                `json:"k" validate:"gte=0,lte=1000"`
	Weights   map[string]float64 `json:"weights" validate:"omitempty,dive,gte=0"`
	Diversity *float64           `json:"diversity" validate:"omitempty,gte=0,lte=1"`
	SkipCache bool               `json:"skip_cache"`
}

// recommendationData is the success payload for recommendation endpoints.
type recommendationData struct {
	UserID       int64                    `json:"user_id"`
	Items        []models.RecommendedBook `json:"items"`
	ColdStart    bool                     `json:"cold_start"`
	Strategies   []string                 `json:"strategies,omitempty"`
	ModelVersion string                   `json:"model_version"`
	ComputedAt   time.Time                `json:"computed_at"`
}

// Recommendations handles POST /api/v1/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request body must be valid JSON", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	h.serveRecommendations(w, r, &recommend.Request{
		UserID:    req.UserID,
		K:         req.K,
		Weights:   req.Weights,
		Diversity: req.Diversity,
		SkipCache: req.SkipCache,
	})
}

// UserRecommendations handles GET /api/v1/users/{userID}/recommendations.
func (h *Handler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	h.serveRecommendations(w, r, &recommend.Request{
		UserID:    userID,
		K:         getIntParam(r, "k", 0),
		SkipCache: r.URL.Query().Get("refresh") == "true",
	})
}

// Explanation handles
// GET /api/v1/users/{userID}/recommendations/explanation?isbn=...
// It reads the cached record only and never triggers recomputation.
func (h *Handler) Explanation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	isbn := r.URL.Query().Get("isbn")
	if isbn == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "isbn query parameter is required", nil)
		return
	}

	item, err := h.recommender.Explain(r.Context(), userID, isbn)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     item,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

func (h *Handler) serveRecommendations(w http.ResponseWriter, r *http.Request, req *recommend.Request) {
	start := time.Now()
	resp, err := h.recommender.Recommend(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: &recommendationData{
			UserID:       resp.UserID,
			Items:        resp.Items,
			ColdStart:    resp.ColdStart,
			Strategies:   resp.Strategies,
			ModelVersion: resp.ModelVersion,
			ComputedAt:   resp.ComputedAt,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      resp.FromCache,
		},
	})
}

// pathUserID parses the {userID} path parameter. A non-numeric or
// non-positive value is a client error, not a lookup miss.
func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_USER_ID",
			"user id must be a positive integer", nil)
		return 0, false
	}
	return userID, true
}

// respondDomainError maps engine errors onto HTTP statuses and stable
// error codes.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, recommend.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, recommend.ErrRecommendationUnavailable):
		respondError(w, http.StatusServiceUnavailable, "RECOMMENDATION_UNAVAILABLE",
			"recommendations are temporarily unavailable", err)
	case errors.Is(err, recommend.ErrRepositoryUnavailable):
		respondError(w, http.StatusServiceUnavailable, "REPOSITORY_UNAVAILABLE",
			"backing store is temporarily unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"internal server error", err)
	}
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"state": "alive"},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Pinger reports backing-store reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReady handles GET /api/v1/health/ready. It fails when the
// relational store is unreachable; the document store is embedded and
// has no meaningful remote failure mode.
func (h *Handler) HealthReady(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "REPOSITORY_UNAVAILABLE",
					"relational store not ready", err)
				return
			}
		}
		respondJSON(w, http.StatusOK, &models.APIResponse{
			Status:   "success",
			Data:     map[string]string{"state": "ready"},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
	}
}
