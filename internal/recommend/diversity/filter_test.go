// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package diversity

import (
	"reflect"
	"testing"
)

func isbns(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ISBN
	}
	return out
}

func TestApplyAuthorCap(t *testing.T) {
	t.Parallel()

	// Four books by the same author ranked first; cap 2 forces the walk
	// past them to other authors.
	ranked := []Entry{
		{ISBN: "001", Author: "king", Genre: "horror"},
		{ISBN: "002", Author: "king", Genre: "horror"},
		{ISBN: "003", Author: "king", Genre: "thriller"},
		{ISBN: "004", Author: "king", Genre: "thriller"},
		{ISBN: "005", Author: "austen", Genre: "romance"},
		{ISBN: "006", Author: "tolkien", Genre: "fantasy"},
	}

	f := NewFilter(Config{MaxPerAuthor: 2, MaxPerGenre: 3})
	got := isbns(f.Apply(ranked, 1.0, 4))
	want := []string{"001", "002", "005", "006"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApplyGenreCap(t *testing.T) {
	t.Parallel()

	ranked := []Entry{
		{ISBN: "001", Author: "a1", Genre: "fantasy"},
		{ISBN: "002", Author: "a2", Genre: "fantasy"},
		{ISBN: "003", Author: "a3", Genre: "fantasy"},
		{ISBN: "004", Author: "a4", Genre: "fantasy"},
		{ISBN: "005", Author: "a5", Genre: "romance"},
	}

	f := NewFilter(Config{MaxPerAuthor: 2, MaxPerGenre: 3})
	got := isbns(f.Apply(ranked, 1.0, 5))
	want := []string{"001", "002", "003", "005"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestApplyZeroStrengthDisablesFilter(t *testing.T) {
	t.Parallel()

	ranked := []Entry{
		{ISBN: "001", Author: "king", Genre: "horror"},
		{ISBN: "002", Author: "king", Genre: "horror"},
		{ISBN: "003", Author: "king", Genre: "horror"},
	}

	f := NewFilter(Config{MaxPerAuthor: 1, MaxPerGenre: 1})
	got := isbns(f.Apply(ranked, 0, 3))
	want := []string{"001", "002", "003"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() with strength 0 = %v, want passthrough %v", got, want)
	}
}

func TestApplyPartialStrengthRelaxesCaps(t *testing.T) {
	t.Parallel()

	ranked := []Entry{
		{ISBN: "001", Author: "king", Genre: "g1"},
		{ISBN: "002", Author: "king", Genre: "g2"},
		{ISBN: "003", Author: "king", Genre: "g3"},
		{ISBN: "004", Author: "king", Genre: "g4"},
		{ISBN: "005", Author: "king", Genre: "g5"},
	}

	// cap 2 at half strength becomes ceil(2/0.5) = 4.
	f := NewFilter(Config{MaxPerAuthor: 2, MaxPerGenre: 3})
	got := f.Apply(ranked, 0.5, 5)
	if len(got) != 4 {
		t.Errorf("Apply() selected %d entries, want 4", len(got))
	}
}

func TestApplyStopsAtK(t *testing.T) {
	t.Parallel()

	ranked := []Entry{
		{ISBN: "001", Author: "a1", Genre: "g1"},
		{ISBN: "002", Author: "a2", Genre: "g2"},
		{ISBN: "003", Author: "a3", Genre: "g3"},
	}

	f := NewFilter(Config{MaxPerAuthor: 2, MaxPerGenre: 3})
	if got := f.Apply(ranked, 1.0, 2); len(got) != 2 {
		t.Errorf("Apply() selected %d entries, want 2", len(got))
	}
	if got := f.Apply(ranked, 1.0, 0); got != nil {
		t.Errorf("Apply() with k=0 = %v, want nil", got)
	}
}

func TestApplyEmptyAttributesExempt(t *testing.T) {
	t.Parallel()

	// Anonymous works and unclassified genres never share a cap bucket.
	ranked := []Entry{
		{ISBN: "001", Author: "", Genre: ""},
		{ISBN: "002", Author: "", Genre: ""},
		{ISBN: "003", Author: "", Genre: ""},
	}

	f := NewFilter(Config{MaxPerAuthor: 1, MaxPerGenre: 1})
	if got := f.Apply(ranked, 1.0, 3); len(got) != 3 {
		t.Errorf("Apply() selected %d entries, want all 3", len(got))
	}
}

func TestApplyDeterministic(t *testing.T) {
	t.Parallel()

	ranked := []Entry{
		{ISBN: "001", Author: "king", Genre: "horror"},
		{ISBN: "002", Author: "king", Genre: "horror"},
		{ISBN: "003", Author: "king", Genre: "horror"},
		{ISBN: "004", Author: "austen", Genre: "romance"},
	}

	f := NewFilter(Config{MaxPerAuthor: 2, MaxPerGenre: 3})
	first := f.Apply(ranked, 1.0, 3)
	for range 10 {
		if got := f.Apply(ranked, 1.0, 3); !reflect.DeepEqual(got, first) {
			t.Fatalf("Apply() not deterministic: %v vs %v", got, first)
		}
	}
}
