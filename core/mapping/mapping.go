// Package mapping translates annotation boundaries into the token indices
// that receive a tag.
package mapping

import (
	"sort"

	"github.com/FocuswithJustin/nercorpus/core/span"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
)

// TokenIndices returns the sorted, deduplicated indices of every token whose
// character range intersects one of the spans. A zero-width span selects
// the token containing its position. Inverted or out-of-range spans select
// nothing.
func TokenIndices(tokens []tokenize.Token, spans []span.Span) []int {
	if len(tokens) == 0 || len(spans) == 0 {
		return []int{}
	}
	hit := make([]bool, len(tokens))
	for _, sp := range spans {
		if !sp.Valid() {
			continue
		}
		// first token ending after the span start
		i := sort.Search(len(tokens), func(k int) bool { return tokens[k].End > sp.Start })
		if sp.IsEmpty() {
			if i < len(tokens) && tokens[i].Span().ContainsPoint(sp.Start) {
				hit[i] = true
			}
			continue
		}
		for ; i < len(tokens) && tokens[i].Start < sp.End; i++ {
			if tokens[i].Span().Overlaps(sp) {
				hit[i] = true
			}
		}
	}
	return collect(hit)
}

// PositionIndices expands closed token-position intervals [Start, End] into
// the covered indices of a sentence of n tokens. Intervals are clamped to
// the sentence; inverted ones are skipped.
func PositionIndices(n int, positions []span.Span) []int {
	if n <= 0 || len(positions) == 0 {
		return []int{}
	}
	hit := make([]bool, n)
	for _, p := range positions {
		if p.Start > p.End || p.End < 0 || p.Start >= n {
			continue
		}
		for i := max(p.Start, 0); i <= min(p.End, n-1); i++ {
			hit[i] = true
		}
	}
	return collect(hit)
}

// SpanIndices maps every span separately, keeping the per-span grouping
// that TokenIndices coalesces. Entry i belongs to spans[i].
func SpanIndices(tokens []tokenize.Token, spans []span.Span) [][]int {
	out := make([][]int, len(spans))
	for i, sp := range spans {
		out[i] = TokenIndices(tokens, []span.Span{sp})
	}
	return out
}

func collect(hit []bool) []int {
	out := []int{}
	for i, h := range hit {
		if h {
			out = append(out, i)
		}
	}
	return out
}
