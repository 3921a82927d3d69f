// Package reconcile merges a trusted entity layer with a predicted one into
// a flat, non-overlapping span set ready for stand-off markup.
//
// Precedence:
//
//  1. Every primary entity is kept unchanged.
//  2. A secondary entity overlapping any primary entity is discarded.
//  3. Overlapping secondary entities compete: longer wins, then earlier
//     start, then the one seen first.
//
// Spans are never split: a partial overlap discards the loser entirely.
package reconcile

import (
	"sort"

	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/span"
)

// Layer identifies where a reconciled entry came from.
type Layer uint8

// Layer constants.
const (
	Primary Layer = iota
	Secondary
)

func (l Layer) String() string {
	if l == Secondary {
		return "secondary"
	}
	return "primary"
}

// Reason explains why a secondary entity was discarded.
type Reason string

// Discard reasons.
const (
	OverlapsPrimary   Reason = "overlaps-primary"
	OverlapsSecondary Reason = "overlaps-secondary"
	EmptySpan         Reason = "empty-span"
)

// Entry is one retained entity.
type Entry struct {
	Entity ner.Entity
	Layer  Layer
}

// Discard records a secondary entity that did not survive, and the span
// that beat it (zero for EmptySpan).
type Discard struct {
	Entity  ner.Entity
	Reason  Reason
	Against span.Span
}

// Result is the merged layer. Entries are sorted by start offset, primary
// first on ties.
type Result struct {
	Entries   []Entry
	Discarded []Discard
}

// Reconcile merges primary and secondary. Neither input is modified; a nil
// secondary layer yields the primary layer alone. Primary entries are kept
// as given, even with empty spans; empty or inverted secondary spans are
// discarded as EmptySpan.
func Reconcile(primary, secondary []ner.Entity) Result {
	res := Result{Entries: make([]Entry, 0, len(primary)+len(secondary))}
	for _, e := range primary {
		res.Entries = append(res.Entries, Entry{Entity: e.Clone(), Layer: Primary})
	}

	type candidate struct {
		entity ner.Entity
		order  int
	}
	var candidates []candidate
	for i, e := range secondary {
		if !e.Span.Valid() || e.Span.IsEmpty() {
			res.Discarded = append(res.Discarded, Discard{Entity: e.Clone(), Reason: EmptySpan})
			continue
		}
		if p, ok := firstOverlap(primary, e.Span); ok {
			res.Discarded = append(res.Discarded, Discard{Entity: e.Clone(), Reason: OverlapsPrimary, Against: p})
			continue
		}
		candidates = append(candidates, candidate{entity: e, order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.entity.Span.Len() != b.entity.Span.Len() {
			return a.entity.Span.Len() > b.entity.Span.Len()
		}
		if a.entity.Span.Start != b.entity.Span.Start {
			return a.entity.Span.Start < b.entity.Span.Start
		}
		return a.order < b.order
	})

	var accepted []ner.Entity
	for _, c := range candidates {
		if w, ok := firstOverlap(accepted, c.entity.Span); ok {
			res.Discarded = append(res.Discarded, Discard{Entity: c.entity.Clone(), Reason: OverlapsSecondary, Against: w})
			continue
		}
		accepted = append(accepted, c.entity)
		res.Entries = append(res.Entries, Entry{Entity: c.entity.Clone(), Layer: Secondary})
	}

	sort.SliceStable(res.Entries, func(i, j int) bool {
		a, b := res.Entries[i], res.Entries[j]
		if a.Entity.Span.Start != b.Entity.Span.Start {
			return a.Entity.Span.Start < b.Entity.Span.Start
		}
		return a.Layer < b.Layer
	})
	return res
}

// Entities returns the retained entities in output order.
func (r Result) Entities() []ner.Entity {
	out := make([]ner.Entity, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Entity
	}
	return out
}

// Spans returns the retained spans in output order.
func (r Result) Spans() []span.Span {
	out := make([]span.Span, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Entity.Span
	}
	return out
}

// Count returns the number of retained entries of the given layer.
func (r Result) Count(l Layer) int {
	n := 0
	for _, e := range r.Entries {
		if e.Layer == l {
			n++
		}
	}
	return n
}

func firstOverlap(entities []ner.Entity, sp span.Span) (span.Span, bool) {
	for _, e := range entities {
		if e.Span.Overlaps(sp) {
			return e.Span, true
		}
	}
	return span.Span{}, false
}
