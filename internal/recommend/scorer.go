// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import "sort"

// rankedCandidate is a merged candidate after blending, carrying the
// per-strategy contributions and evidence needed downstream.
type rankedCandidate struct {
	ISBN      string
	Score     float64
	Breakdown map[string]float64
	Evidence  map[string]Evidence
}

// normalizeScores min-max normalizes raw scores to [0,1] within one
// strategy's output. When all scores are equal (including a single
// candidate) every candidate gets 0.5 so the strategy still contributes
// a neutral signal.
func normalizeScores(candidates []CandidateScore) map[string]float64 {
	normalized := make(map[string]float64, len(candidates))
	if len(candidates) == 0 {
		return normalized
	}

	minScore := candidates[0].RawScore
	maxScore := candidates[0].RawScore
	for _, c := range candidates[1:] {
		if c.RawScore < minScore {
			minScore = c.RawScore
		}
		if c.RawScore > maxScore {
			maxScore = c.RawScore
		}
	}

	if maxScore == minScore {
		for _, c := range candidates {
			normalized[c.ISBN] = 0.5
		}
		return normalized
	}

	span := maxScore - minScore
	for _, c := range candidates {
		normalized[c.ISBN] = (c.RawScore - minScore) / span
	}
	return normalized
}

// blendCandidates merges per-strategy candidate lists into one ranked list.
//
// Each strategy's raw scores are normalized independently, then combined as
// a weighted sum over the normalized weight map. A candidate absent from a
// strategy simply receives no contribution from it. Ties on the final score
// break by higher popularity, then by ascending ISBN, so rankings are
// deterministic for identical inputs.
func blendCandidates(
	byStrategy map[string][]CandidateScore,
	weights map[string]float64,
	popularity map[string]float64,
) []rankedCandidate {
	weights = NormalizeWeights(weights)

	merged := make(map[string]*rankedCandidate)
	for strategy, candidates := range byStrategy {
		weight := weights[strategy]
		if weight == 0 || len(candidates) == 0 {
			continue
		}

		normalized := normalizeScores(candidates)
		for _, c := range candidates {
			rc, ok := merged[c.ISBN]
			if !ok {
				rc = &rankedCandidate{
					ISBN:      c.ISBN,
					Breakdown: make(map[string]float64),
					Evidence:  make(map[string]Evidence),
				}
				merged[c.ISBN] = rc
			}
			contribution := weight * normalized[c.ISBN]
			rc.Score += contribution
			rc.Breakdown[strategy] = contribution
			rc.Evidence[strategy] = c.Evidence
		}
	}

	ranked := make([]rankedCandidate, 0, len(merged))
	for _, rc := range merged {
		ranked = append(ranked, *rc)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		pi, pj := popularity[ranked[i].ISBN], popularity[ranked[j].ISBN]
		if pi != pj {
			return pi > pj
		}
		return ranked[i].ISBN < ranked[j].ISBN
	})
	return ranked
}
