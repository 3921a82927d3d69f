package ner

import "github.com/FocuswithJustin/nercorpus/core/span"

// Sense is a word-sense annotation. It shares the span contract of Entity
// but carries sense keys instead of a taxonomy type.
type Sense struct {
	CoarseSense      string  `json:"coarse_sense,omitempty"`
	FineSense        string  `json:"fine_sense,omitempty"`
	CoarseConfidence float64 `json:"coarse_confidence"`
	FineConfidence   float64 `json:"fine_confidence"`

	Description string `json:"description,omitempty"`

	// External reference keys.
	WiktionaryRef string `json:"wiktionary_ref,omitempty"`
	WikipediaRef  string `json:"wikipedia_ref,omitempty"`

	Span span.Span `json:"span"`
}

// Key returns the most specific sense key available.
func (s Sense) Key() string {
	if s.FineSense != "" {
		return s.FineSense
	}
	return s.CoarseSense
}

// Confident reports whether the fine sense meets threshold.
func (s Sense) Confident(threshold float64) bool {
	return s.FineConfidence >= threshold
}
