// Package span defines the half-open character range shared by tokens,
// entities and senses.
package span

import (
	"fmt"
	"sort"
)

// Span is a half-open range [Start, End) over a character index space.
// Offsets are byte offsets into the UTF-8 text the span was taken from.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// New returns the span [start, end). An inverted range is returned as is;
// callers check Valid before relying on it.
func New(start, end int) Span {
	return Span{Start: start, End: end}
}

// Valid reports whether the span is non-negative and not inverted.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.Start <= s.End
}

// Len returns the width of the span, or 0 for an inverted span.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// IsEmpty reports whether the span is zero-width.
func (s Span) IsEmpty() bool {
	return s.Start == s.End
}

// Overlaps reports whether the two spans share at least one position.
// Zero-width spans never overlap anything.
func (s Span) Overlaps(o Span) bool {
	return max(s.Start, o.Start) < min(s.End, o.End)
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// StrictlyContains reports whether o lies inside s and the two differ.
func (s Span) StrictlyContains(o Span) bool {
	return s.Contains(o) && s != o
}

// ContainsPoint reports whether position p falls inside [Start, End).
func (s Span) ContainsPoint(p int) bool {
	return s.Start <= p && p < s.End
}

// Shift returns the span moved by delta positions.
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

// Slice returns the substring of text covered by the span. Out-of-range or
// inverted spans yield "".
func (s Span) Slice(text string) string {
	if !s.Valid() || s.End > len(text) {
		return ""
	}
	return text[s.Start:s.End]
}

// String formats the span as [start,end).
func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Less orders spans by start offset, then by end offset.
func Less(a, b Span) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// Sort sorts spans in place by (start, end).
func Sort(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool { return Less(spans[i], spans[j]) })
}

// AnyOverlap reports whether any two spans in the list overlap.
func AnyOverlap(spans []Span) bool {
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].Overlaps(spans[j]) {
				return true
			}
		}
	}
	return false
}
