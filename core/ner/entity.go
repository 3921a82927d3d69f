package ner

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/span"
)

// Origin records which layer produced an entity.
type Origin uint8

// Origin constants.
const (
	// OriginPredicted marks entities produced by the classifier.
	OriginPredicted Origin = iota
	// OriginUser marks gold entities loaded from an annotated corpus.
	OriginUser
)

// String returns "predicted" or "user".
func (o Origin) String() string {
	if o == OriginUser {
		return "user"
	}
	return "predicted"
}

// Entity is a recognized mention of a named-entity type at a given span.
type Entity struct {
	// RawText is the surface form as it appears in the document.
	RawText string `json:"raw_text"`

	// NormalizedText is an optional canonical form.
	NormalizedText string `json:"normalized_text,omitempty"`

	// Type is the fixed taxonomy member.
	Type Type `json:"type"`

	// SubTypes are free-text refinements; the first one is primary.
	SubTypes []string `json:"sub_types,omitempty"`

	// Span locates the mention in the text it was recognized in.
	Span span.Span `json:"span"`

	// Probability and Confidence default to 0 and lie in [0,1].
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`

	Origin Origin `json:"origin"`

	// Sense optionally links the mention to a word sense.
	Sense *Sense `json:"sense,omitempty"`
}

// NewEntity creates an entity of the given type over sp.
func NewEntity(raw string, t Type, sp span.Span) Entity {
	return Entity{RawText: raw, Type: t, Span: sp}
}

// PrimarySubType returns the first subtype or "".
func (e Entity) PrimarySubType() string {
	if len(e.SubTypes) == 0 {
		return ""
	}
	return e.SubTypes[0]
}

// WithSubType returns a copy of e with sub appended to its subtypes.
// Duplicates and empty strings are ignored.
func (e Entity) WithSubType(sub string) Entity {
	if sub == "" {
		return e
	}
	for _, s := range e.SubTypes {
		if s == sub {
			return e
		}
	}
	out := e.Clone()
	out.SubTypes = append(out.SubTypes, sub)
	return out
}

// WithSpan returns a copy of e positioned at sp.
func (e Entity) WithSpan(sp span.Span) Entity {
	out := e.Clone()
	out.Span = sp
	return out
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	out := e
	if e.SubTypes != nil {
		out.SubTypes = append([]string(nil), e.SubTypes...)
	}
	if e.Sense != nil {
		s := *e.Sense
		out.Sense = &s
	}
	return out
}

// SameSpan reports whether two entities cover the same range. Entity
// identity in a layer is positional.
func (e Entity) SameSpan(o Entity) bool {
	return e.Span == o.Span
}

// Validate checks the span and the probability ranges.
func (e Entity) Validate() error {
	if !e.Span.Valid() {
		return errors.NewValidation("span", fmt.Sprintf("invalid span %s", e.Span))
	}
	if !e.Type.IsValid() {
		return errors.NewValidation("type", fmt.Sprintf("type %d out of range", e.Type))
	}
	if e.Probability < 0 || e.Probability > 1 {
		return errors.NewValidation("probability", fmt.Sprintf("%g outside [0,1]", e.Probability))
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return errors.NewValidation("confidence", fmt.Sprintf("%g outside [0,1]", e.Confidence))
	}
	return nil
}

// String renders the entity for diagnostics.
func (e Entity) String() string {
	return fmt.Sprintf("%s%s %q", e.Type, e.Span, e.RawText)
}

// SortEntities orders entities by span start then end, keeping input order
// for equal spans.
func SortEntities(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		return span.Less(entities[i].Span, entities[j].Span)
	})
}
