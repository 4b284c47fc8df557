// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package strategy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mwhitten/bookrec/internal/models"
	"github.com/mwhitten/bookrec/internal/recommend"
)

// ContentBased scores candidates by TF-IDF similarity between the books a
// user rated highly and books drawn from the user's preferred genres.
//
// Feature text combines title terms, authors, and genre labels. Vectors are
// built over the per-request corpus (liked books plus candidates), so IDF
// reflects the comparison actually being made rather than a stale global
// model.
type ContentBased struct {
	repo   recommend.RelationalRepository
	config recommend.ContentBasedConfig
	logger zerolog.Logger
}

var _ recommend.Generator = (*ContentBased)(nil)

// NewContentBased creates the content-based generator.
func NewContentBased(repo recommend.RelationalRepository, cfg recommend.ContentBasedConfig, logger zerolog.Logger) *ContentBased {
	return &ContentBased{
		repo:   repo,
		config: cfg,
		logger: logger.With().Str("strategy", recommend.StrategyContentBased).Logger(),
	}
}

// Name returns the strategy tag.
func (g *ContentBased) Name() string { return recommend.StrategyContentBased }

// Generate implements recommend.Generator.
func (g *ContentBased) Generate(ctx context.Context, in *recommend.GeneratorInput) ([]recommend.CandidateScore, error) {
	liked := g.likedISBNs(in.Ratings)
	if len(liked) == 0 {
		return nil, nil
	}

	likedBooks, err := g.repo.BooksByISBN(ctx, liked)
	if err != nil {
		return nil, fmt.Errorf("load liked books: %w", err)
	}
	if len(likedBooks) == 0 {
		return nil, nil
	}

	genres := preferredGenres(in.Profile, likedBooks)
	if len(genres) == 0 {
		return nil, nil
	}

	exclude := make([]string, 0, len(in.Rated))
	for isbn := range in.Rated {
		exclude = append(exclude, isbn)
	}
	candidates, err := g.repo.CandidatesByGenre(ctx, genres, exclude, g.config.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("load genre candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return g.scoreCandidates(likedBooks, candidates, genres, in.Limit), nil
}

// likedISBNs returns the user's positively rated ISBNs, most recent first,
// capped at the configured anchor count.
func (g *ContentBased) likedISBNs(ratings []models.Rating) []string {
	liked := make([]string, 0, g.config.MaxLikedBooks)
	for _, r := range ratings {
		if r.Positive() {
			liked = append(liked, r.ISBN)
			if len(liked) == g.config.MaxLikedBooks {
				break
			}
		}
	}
	return liked
}

// preferredGenres returns the profile's ranked root genres, falling back to
// the genres of the liked books for users without a profile.
func preferredGenres(profile *models.UserProfile, likedBooks map[string]*models.Book) []string {
	if profile != nil && len(profile.PreferredRootGenres) > 0 {
		return profile.PreferredRootGenres
	}

	seen := make(map[string]bool)
	var genres []string
	for _, book := range likedBooks {
		for _, genre := range book.RootGenres {
			if !seen[genre] {
				seen[genre] = true
				genres = append(genres, genre)
			}
		}
	}
	sort.Strings(genres)
	return genres
}

// scoreCandidates builds TF-IDF vectors over the combined corpus and scores
// each candidate by its best cosine similarity against any liked book.
func (g *ContentBased) scoreCandidates(
	likedBooks map[string]*models.Book,
	candidates []models.Book,
	genres []string,
	limit int,
) []recommend.CandidateScore {
	corpus := make([]*models.Book, 0, len(likedBooks)+len(candidates))
	for _, book := range likedBooks {
		corpus = append(corpus, book)
	}
	for i := range candidates {
		corpus = append(corpus, &candidates[i])
	}
	vectors := buildTFIDF(corpus)

	genreSet := make(map[string]bool, len(genres))
	for _, genre := range genres {
		genreSet[genre] = true
	}

	scored := make([]recommend.CandidateScore, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		cv, ok := vectors[candidate.ISBN]
		if !ok {
			continue
		}

		best := 0.0
		bestISBN := ""
		for isbn, book := range likedBooks {
			lv, ok := vectors[isbn]
			if !ok {
				continue
			}
			if sim := cosine(cv, lv); sim > best {
				best = sim
				bestISBN = book.ISBN
			}
		}
		if best < g.config.MinSimilarity {
			continue
		}

		ev := recommend.Evidence{SimilarISBN: bestISBN}
		if anchor, ok := likedBooks[bestISBN]; ok {
			ev.SimilarTitle = anchor.Title
		}
		for _, genre := range candidate.RootGenres {
			if genreSet[genre] {
				ev.MatchedGenre = genre
				break
			}
		}

		scored = append(scored, recommend.CandidateScore{
			ISBN:     candidate.ISBN,
			RawScore: best,
			Strategy: recommend.StrategyContentBased,
			Evidence: ev,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].RawScore != scored[j].RawScore {
			return scored[i].RawScore > scored[j].RawScore
		}
		return scored[i].ISBN < scored[j].ISBN
	})
	return truncate(scored, limit)
}

// termVector is a sparse TF-IDF vector keyed by term.
type termVector map[string]float64

// buildTFIDF computes TF-IDF vectors for every book in the corpus.
func buildTFIDF(corpus []*models.Book) map[string]termVector {
	docTerms := make(map[string][]string, len(corpus))
	docFreq := make(map[string]int)
	for _, book := range corpus {
		if _, dup := docTerms[book.ISBN]; dup {
			continue
		}
		terms := bookTerms(book)
		docTerms[book.ISBN] = terms

		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	n := float64(len(docTerms))
	vectors := make(map[string]termVector, len(docTerms))
	for isbn, terms := range docTerms {
		if len(terms) == 0 {
			continue
		}
		tf := make(map[string]float64, len(terms))
		for _, term := range terms {
			tf[term]++
		}

		vec := make(termVector, len(tf))
		for term, count := range tf {
			idf := math.Log((n+1)/(float64(docFreq[term])+1)) + 1
			vec[term] = (count / float64(len(terms))) * idf
		}
		vectors[isbn] = vec
	}
	return vectors
}

// cosine computes cosine similarity between two sparse vectors.
func cosine(a, b termVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot, normA, normB float64
	for term, va := range a {
		normA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if dot == 0 || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// stopwords excluded from title tokenization.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"his": true, "her": true, "you": true, "are": true, "not": true,
	"all": true, "was": true, "one": true, "how": true,
}

// bookTerms extracts the feature terms for one book: title words, authors,
// and genre labels. Author and genre terms are namespaced so a title word
// never collides with an author or genre label.
func bookTerms(book *models.Book) []string {
	var terms []string

	for _, word := range strings.FieldsFunc(strings.ToLower(book.Title), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		if len(word) >= 3 && !stopwords[word] {
			terms = append(terms, word)
		}
	}
	for _, author := range book.Authors {
		terms = append(terms, "author:"+strings.ToLower(author))
	}
	for _, genre := range book.RootGenres {
		terms = append(terms, "genre:"+strings.ToLower(genre))
	}
	for _, genre := range book.Subgenres {
		terms = append(terms, "subgenre:"+strings.ToLower(genre))
	}
	return terms
}
