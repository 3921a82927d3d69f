package align

import (
	"io"

	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
)

// TextSection is one text-bearing unit of the raw source (a headline or a
// paragraph) with its tokens.
type TextSection struct {
	ID     string
	Text   string
	Tokens []tokenize.Token
}

// Unit is one annotation unit of the overlay source: literal text and the
// category it belongs to. An empty Label or ner.Outside marks unmarked
// text, which still consumes tokens.
type Unit struct {
	Text   string
	Label  string
	Entity *ner.Entity
	Sense  *ner.Sense
}

// Marked reports whether the unit carries a category.
func (u Unit) Marked() bool {
	return u.Label != "" && u.Label != ner.Outside
}

// AnnotationSection is the ordered list of units describing one section.
type AnnotationSection struct {
	ID    string
	Units []Unit
}

// TextSource yields raw sections in document order. Next returns io.EOF
// after the last section.
type TextSource interface {
	Next() (TextSection, error)
}

// AnnotationSource yields overlay sections in document order. Next returns
// io.EOF after the last section.
type AnnotationSource interface {
	Next() (AnnotationSection, error)
}

// TextSlice adapts a slice to a TextSource.
func TextSlice(sections []TextSection) TextSource {
	return &textSlice{sections: sections}
}

type textSlice struct {
	sections []TextSection
	pos      int
}

func (s *textSlice) Next() (TextSection, error) {
	if s.pos >= len(s.sections) {
		return TextSection{}, io.EOF
	}
	sec := s.sections[s.pos]
	s.pos++
	return sec, nil
}

// AnnotationSlice adapts a slice to an AnnotationSource.
func AnnotationSlice(sections []AnnotationSection) AnnotationSource {
	return &annotationSlice{sections: sections}
}

type annotationSlice struct {
	sections []AnnotationSection
	pos      int
}

func (s *annotationSlice) Next() (AnnotationSection, error) {
	if s.pos >= len(s.sections) {
		return AnnotationSection{}, io.EOF
	}
	sec := s.sections[s.pos]
	s.pos++
	return sec, nil
}
