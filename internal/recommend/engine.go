// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/metrics"
	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend/diversity"
)

// Engine orchestrates candidate generation, blending, diversity filtering,
// explanation, and caching for recommendation requests.
type Engine struct {
	config     Config
	relational RelationalRepository
	profiles   ProfileRepository
	generators map[string]Generator
	filter     *diversity.Filter
	logger     zerolog.Logger
}

// NewEngine creates a recommendation engine. The generator set is fixed at
// construction; registering the same strategy twice is an error.
func NewEngine(
	cfg Config,
	relational RelationalRepository,
	profiles ProfileRepository,
	generators []Generator,
	logger zerolog.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if relational == nil {
		return nil, errors.New("relational repository is required")
	}
	if profiles == nil {
		return nil, errors.New("profile repository is required")
	}

	byName := make(map[string]Generator, len(generators))
	for _, g := range generators {
		if !KnownStrategy(g.Name()) {
			return nil, fmt.Errorf("unknown strategy %q", g.Name())
		}
		if _, dup := byName[g.Name()]; dup {
			return nil, fmt.Errorf("duplicate strategy %q", g.Name())
		}
		byName[g.Name()] = g
	}

	return &Engine{
		config:     cfg,
		relational: relational,
		profiles:   profiles,
		generators: byName,
		filter: diversity.NewFilter(diversity.Config{
			MaxPerAuthor: cfg.Diversity.MaxPerAuthor,
			MaxPerGenre:  cfg.Diversity.MaxPerGenre,
		}),
		logger: logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Recommend produces a ranked, diversity-filtered recommendation list for
// one user. Partial strategy failure degrades the blend; the request fails
// only when every eligible strategy fails.
func (e *Engine) Recommend(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := e.prepareRequest(req)
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}

	logger := e.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("user_id", req.UserID).
		Logger()

	if resp := e.tryCachedResponse(ctx, req, logger); resp != nil {
		metrics.RecommendationRequests.WithLabelValues("ok").Inc()
		return resp, nil
	}

	resp, err := e.compute(ctx, req, logger)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			metrics.RecommendationRequests.WithLabelValues("not_found").Inc()
		case errors.Is(err, ErrRecommendationUnavailable),
			errors.Is(err, ErrRepositoryUnavailable):
			metrics.RecommendationRequests.WithLabelValues("unavailable").Inc()
		default:
			metrics.RecommendationRequests.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.RecommendationRequests.WithLabelValues("ok").Inc()
	return resp, nil
}

// prepareRequest validates the request and fills defaults. Validation runs
// before any repository access.
func (e *Engine) prepareRequest(req *Request) (*Request, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	out := *req
	if out.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id must be positive", ErrInvalidRequest)
	}
	if out.K == 0 {
		out.K = e.config.Limits.DefaultK
	}
	if out.K < 1 || out.K > e.config.Limits.MaxK {
		return nil, fmt.Errorf("%w: k must be in [1,%d], got %d",
			ErrInvalidRequest, e.config.Limits.MaxK, out.K)
	}

	if out.Weights != nil {
		var sum float64
		for name, w := range out.Weights {
			if !KnownStrategy(name) {
				return nil, fmt.Errorf("%w: unknown strategy weight %q", ErrInvalidRequest, name)
			}
			if w < 0 {
				return nil, fmt.Errorf("%w: weight for %q must be non-negative, got %f",
					ErrInvalidRequest, name, w)
			}
			sum += w
		}
		if sum == 0 {
			return nil, fmt.Errorf("%w: weights must have a positive sum", ErrInvalidRequest)
		}
	}

	if out.Diversity != nil {
		if d := *out.Diversity; d < 0 || d > 1 {
			return nil, fmt.Errorf("%w: diversity must be in [0,1], got %f", ErrInvalidRequest, d)
		}
	}

	return &out, nil
}

// cacheable reports whether the request may use the recommendation cache.
// Requests overriding weights or diversity are computed fresh so the cache
// never serves a list ranked under different parameters.
func (e *Engine) cacheable(req *Request) bool {
	return e.config.Cache.Enabled && !req.SkipCache &&
		req.Weights == nil && req.Diversity == nil
}

// tryCachedResponse serves a fresh cached record when one covers the
// requested k. Expired records surface from the store as ErrNotFound.
func (e *Engine) tryCachedResponse(ctx context.Context, req *Request, logger zerolog.Logger) *Response {
	if !e.cacheable(req) {
		return nil
	}

	rec, err := e.profiles.CachedRecommendation(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn().Err(err).Msg("recommendation cache read failed")
		}
		metrics.CacheMisses.Inc()
		return nil
	}
	if len(rec.Items) < req.K {
		metrics.CacheMisses.Inc()
		return nil
	}

	metrics.CacheHits.Inc()
	logger.Debug().Msg("recommendation cache hit")
	return &Response{
		UserID:       req.UserID,
		Items:        rec.Items[:req.K],
		ColdStart:    rec.ColdStart,
		FromCache:    true,
		ModelVersion: rec.ModelVersion,
		ComputedAt:   rec.ComputedAt,
	}
}

// compute runs the full generation pipeline for a cache miss.
func (e *Engine) compute(ctx context.Context, req *Request, logger zerolog.Logger) (*Response, error) {
	in, coldStart, err := e.loadGeneratorInput(ctx, req)
	if err != nil {
		return nil, err
	}
	if coldStart {
		metrics.ColdStartRequests.Inc()
	}

	weights := e.effectiveWeights(req, coldStart)
	eligible := e.eligibleGenerators(weights, coldStart)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no strategy eligible for user %d",
			ErrRecommendationUnavailable, req.UserID)
	}

	byStrategy, succeeded := e.runGenerators(ctx, eligible, in, logger)
	if len(succeeded) == 0 {
		return nil, fmt.Errorf("%w: all %d strategies failed for user %d",
			ErrRecommendationUnavailable, len(eligible), req.UserID)
	}

	items, err := e.rankAndFilter(ctx, req, byStrategy, weights)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		UserID:       req.UserID,
		Items:        items,
		ColdStart:    coldStart,
		Strategies:   succeeded,
		ModelVersion: e.config.ModelVersion,
		ComputedAt:   time.Now().UTC(),
	}

	e.storeResponse(ctx, req, resp, logger)

	logger.Debug().
		Int("items", len(items)).
		Bool("cold_start", coldStart).
		Strs("strategies", succeeded).
		Dur("elapsed", time.Since(resp.ComputedAt)).
		Msg("recommendation computed")
	return resp, nil
}

// loadGeneratorInput prefetches the per-user state shared by all
// generators and decides whether the user is cold.
func (e *Engine) loadGeneratorInput(ctx context.Context, req *Request) (*GeneratorInput, bool, error) {
	user, err := e.relational.UserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("user %d: %w", req.UserID, ErrNotFound)
		}
		return nil, false, fmt.Errorf("load user %d: %w", req.UserID, err)
	}

	ratings, err := e.relational.RatingsByUser(ctx, req.UserID, e.config.Limits.MaxRatingsFetched)
	if err != nil {
		return nil, false, fmt.Errorf("load ratings for user %d: %w", req.UserID, err)
	}

	profile, err := e.profiles.UserProfile(ctx, req.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("load profile for user %d: %w", req.UserID, err)
	}

	rated := make(map[string]bool, len(ratings))
	for _, r := range ratings {
		rated[r.ISBN] = true
	}

	coldStart := len(ratings) < e.config.ColdStart.MinRatings ||
		profile == nil || !profile.HasPreferences()

	// Generators fetch more than k so blending and diversity filtering
	// have real choices to make.
	limit := req.K * 5
	if limit < 50 {
		limit = 50
	}

	return &GeneratorInput{
		User:    user,
		Profile: profile,
		Ratings: ratings,
		Rated:   rated,
		Limit:   limit,
	}, coldStart, nil
}

// effectiveWeights picks the weight map for this run. Cold users always use
// the configured weights; custom weights apply to warm users only.
func (e *Engine) effectiveWeights(req *Request, coldStart bool) map[string]float64 {
	if !coldStart && req.Weights != nil {
		return req.Weights
	}
	return e.config.Weights.ToMap()
}

// eligibleGenerators selects the generators to run. Cold users are served
// by cold_start and trending only; warm users by every personalized
// strategy carrying a positive weight.
func (e *Engine) eligibleGenerators(weights map[string]float64, coldStart bool) []Generator {
	var names []string
	if coldStart {
		names = []string{StrategyColdStart, StrategyTrending}
	} else {
		for _, name := range StrategyNames() {
			if name != StrategyColdStart && weights[name] > 0 {
				names = append(names, name)
			}
		}
	}

	eligible := make([]Generator, 0, len(names))
	for _, name := range names {
		if g, ok := e.generators[name]; ok {
			eligible = append(eligible, g)
		}
	}
	return eligible
}

// generatorResult is one strategy's outcome from the parallel fan-out.
type generatorResult struct {
	name       string
	candidates []CandidateScore
	err        error
}

// runGenerators fans the generators out in parallel, each under its own
// timeout, and collects the survivors. A failed generator is logged and
// dropped from the blend.
func (e *Engine) runGenerators(
	ctx context.Context,
	generators []Generator,
	in *GeneratorInput,
	logger zerolog.Logger,
) (map[string][]CandidateScore, []string) {
	results := make([]generatorResult, len(generators))

	var wg sync.WaitGroup
	for i, g := range generators {
		wg.Add(1)
		go func(idx int, gen Generator) {
			defer wg.Done()

			genCtx, cancel := context.WithTimeout(ctx, e.config.Limits.StrategyTimeout)
			defer cancel()

			genStart := time.Now()
			candidates, err := gen.Generate(genCtx, in)
			metrics.StrategyDuration.WithLabelValues(gen.Name()).Observe(time.Since(genStart).Seconds())

			results[idx] = generatorResult{name: gen.Name(), candidates: candidates, err: err}
		}(i, g)
	}
	wg.Wait()

	byStrategy := make(map[string][]CandidateScore, len(results))
	var succeeded []string
	for _, res := range results {
		switch {
		case res.err != nil:
			outcome := "error"
			if errors.Is(res.err, context.DeadlineExceeded) {
				outcome = "timeout"
			}
			metrics.StrategyRuns.WithLabelValues(res.name, outcome).Inc()
			logger.Warn().Err(res.err).Str("strategy", res.name).Msg("strategy failed, degrading blend")
		case len(res.candidates) == 0:
			metrics.StrategyRuns.WithLabelValues(res.name, "empty").Inc()
			succeeded = append(succeeded, res.name)
		default:
			metrics.StrategyRuns.WithLabelValues(res.name, "ok").Inc()
			byStrategy[res.name] = res.candidates
			succeeded = append(succeeded, res.name)
		}
	}
	return byStrategy, succeeded
}

// rankAndFilter blends candidates, drops ISBNs no longer in the catalog,
// applies the diversity filter, and renders explanations.
func (e *Engine) rankAndFilter(
	ctx context.Context,
	req *Request,
	byStrategy map[string][]CandidateScore,
	weights map[string]float64,
) ([]models.RecommendedBook, error) {
	isbnSet := make(map[string]bool)
	for _, candidates := range byStrategy {
		for _, c := range candidates {
			isbnSet[c.ISBN] = true
		}
	}
	if len(isbnSet) == 0 {
		return []models.RecommendedBook{}, nil
	}

	isbns := make([]string, 0, len(isbnSet))
	for isbn := range isbnSet {
		isbns = append(isbns, isbn)
	}

	books, err := e.relational.BooksByISBN(ctx, isbns)
	if err != nil {
		return nil, fmt.Errorf("load candidate books: %w", err)
	}

	bookMetrics, err := e.profiles.BookMetrics(ctx, isbns)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load candidate metrics: %w", err)
	}
	popularity := make(map[string]float64, len(bookMetrics))
	for isbn, m := range bookMetrics {
		popularity[isbn] = m.PopularityScore
	}

	ranked := blendCandidates(byStrategy, weights, popularity)

	// Candidates that vanished from the catalog between generation and
	// ranking are dropped silently.
	entries := make([]diversity.Entry, 0, len(ranked))
	kept := make([]rankedCandidate, 0, len(ranked))
	for _, rc := range ranked {
		book, ok := books[rc.ISBN]
		if !ok {
			continue
		}
		entries = append(entries, diversity.Entry{
			ISBN:   rc.ISBN,
			Author: book.PrimaryAuthor(),
			Genre:  book.PrimaryGenre,
		})
		kept = append(kept, rc)
	}

	strength := e.config.Diversity.Strength
	if req.Diversity != nil {
		strength = *req.Diversity
	}
	selected := e.filter.Apply(entries, strength, req.K)

	keptByISBN := make(map[string]*rankedCandidate, len(kept))
	for i := range kept {
		keptByISBN[kept[i].ISBN] = &kept[i]
	}

	items := make([]models.RecommendedBook, 0, len(selected))
	for _, entry := range selected {
		rc := keptByISBN[entry.ISBN]
		items = append(items, models.RecommendedBook{
			ISBN:      rc.ISBN,
			Title:     books[rc.ISBN].Title,
			Score:     rc.Score,
			Reason:    explainCandidate(rc),
			Breakdown: rc.Breakdown,
		})
	}
	return items, nil
}

// storeResponse writes the computed list through to the recommendation
// cache. A cancelled request context skips the write entirely so the cache
// never holds a partial record.
func (e *Engine) storeResponse(ctx context.Context, req *Request, resp *Response, logger zerolog.Logger) {
	if !e.cacheable(req) || len(resp.Items) == 0 {
		return
	}
	if ctx.Err() != nil {
		logger.Debug().Msg("request cancelled, skipping cache write")
		return
	}

	rec := &models.RecommendationRecord{
		UserID:       req.UserID,
		Items:        resp.Items,
		ModelVersion: resp.ModelVersion,
		ColdStart:    resp.ColdStart,
		ComputedAt:   resp.ComputedAt,
		ExpiresAt:    resp.ComputedAt.Add(e.config.Cache.TTL),
	}
	if err := e.profiles.PutRecommendation(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("recommendation cache write failed")
	}
}

// Explain returns the stored reason for one recommended book from the
// user's cached record. It never triggers recomputation.
func (e *Engine) Explain(ctx context.Context, userID int64, isbn string) (*models.RecommendedBook, error) {
	rec, err := e.profiles.CachedRecommendation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cached recommendation for user %d: %w", userID, err)
	}
	for i := range rec.Items {
		if rec.Items[i].ISBN == isbn {
			return &rec.Items[i], nil
		}
	}
	return nil, fmt.Errorf("isbn %s not in cached recommendations for user %d: %w",
		isbn, userID, ErrNotFound)
}
