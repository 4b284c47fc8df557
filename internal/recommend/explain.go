// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package recommend

import "fmt"

// explainCandidate renders the reason string for one merged candidate from
// the evidence already captured during generation. The dominant strategy is
// the one with the largest weighted contribution; ties resolve in canonical
// strategy order so explanations are deterministic.
func explainCandidate(rc *rankedCandidate) string {
	dominant := dominantStrategy(rc.Breakdown)
	if dominant == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", dominant, renderEvidence(dominant, rc.Evidence[dominant]))
}

// dominantStrategy returns the strategy with the largest contribution.
func dominantStrategy(breakdown map[string]float64) string {
	best := ""
	bestScore := -1.0
	for _, name := range StrategyNames() {
		if contribution, ok := breakdown[name]; ok && contribution > bestScore {
			best = name
			bestScore = contribution
		}
	}
	return best
}

// renderEvidence produces the human-readable half of a reason string.
func renderEvidence(strategy string, ev Evidence) string {
	switch strategy {
	case StrategyContentBased:
		if ev.SimilarTitle != "" {
			return fmt.Sprintf("similar to %q, which you rated highly", ev.SimilarTitle)
		}
		if ev.MatchedAuthor != "" {
			return fmt.Sprintf("by %s, an author you read often", ev.MatchedAuthor)
		}
		if ev.MatchedGenre != "" {
			return fmt.Sprintf("matches your interest in %s", ev.MatchedGenre)
		}
		return "matches books you rated highly"

	case StrategyCollaborative:
		if ev.SupportCount > 0 {
			return fmt.Sprintf("%d readers with similar taste rated this highly", ev.SupportCount)
		}
		return "readers with similar taste rated this highly"

	case StrategyTrending:
		if ev.RecentCount > 0 {
			return fmt.Sprintf("trending with %d recent ratings", ev.RecentCount)
		}
		return "trending with readers right now"

	case StrategyGeographic:
		if ev.SupportCount > 0 {
			return fmt.Sprintf("a favorite of %d readers in your area", ev.SupportCount)
		}
		return "popular with readers in your area"

	case StrategyColdStart:
		if ev.GlobalFallback {
			return "widely loved across all readers"
		}
		if ev.CohortSize > 0 {
			return fmt.Sprintf("popular with %d readers in your demographic group", ev.CohortSize)
		}
		return "popular with readers like you"
	}
	return "recommended for you"
}
