// Package align attaches the categories of an annotation overlay to the
// tokens of a raw text source. Both sources are read section by section
// through pull iterators; a unit the aligner cannot place is reported as a
// drop and never stops the document.
package align

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
)

// MismatchPolicy selects what happens after a unit cannot be matched.
type MismatchPolicy uint8

const (
	// SkipSection drops the failing unit and every later unit of the same
	// section; the remaining tokens stay unmarked.
	SkipSection MismatchPolicy = iota
	// SkipUnit drops only the failing unit and keeps matching later units
	// from the unchanged cursor.
	SkipUnit
)

// Options configures an Aligner.
type Options struct {
	Policy MismatchPolicy

	// MaxSkip bounds how many raw tokens may be passed over as unmarked
	// while searching for a unit. Zero means unbounded.
	MaxSkip int
}

// Aligner matches overlay units onto raw token sections. It holds no
// per-document state and may be shared between goroutines.
type Aligner struct {
	opts Options
}

// New returns an Aligner.
func New(opts Options) *Aligner {
	return &Aligner{opts: opts}
}

// Section is the outcome of aligning one section pair.
type Section struct {
	Vector  AnnotatedTokenVector
	Dropped []*errors.AlignmentError

	// Unpaired is set when one source ran out of sections before the other.
	Unpaired bool
}

// AlignSection aligns the units of one section onto its tokens. The cursor
// only moves forward: a unit whose text occurs only before the cursor is
// dropped rather than attributed retroactively.
func (a *Aligner) AlignSection(index int, text TextSection, units []Unit) Section {
	vec := AnnotatedTokenVector{
		Section: index,
		ID:      text.ID,
		Text:    text.Text,
		Tokens:  text.Tokens,
	}
	var dropped []*errors.AlignmentError

	norms := make([]string, len(text.Tokens))
	for i, tok := range text.Tokens {
		norms[i] = normalizeToken(tok)
	}

	cursor := 0
	for ui, unit := range units {
		target := normalizeUnit(unit.Text)
		if target == "" {
			dropped = append(dropped, errors.NewAlignment(index, ui, unit.Text, "empty unit text"))
			continue
		}

		start, n, ok := a.find(norms, cursor, target)
		if !ok {
			dropped = append(dropped, errors.NewAlignment(index, ui, unit.Text, "not found after cursor"))
			if a.opts.Policy == SkipSection {
				for rest := ui + 1; rest < len(units); rest++ {
					dropped = append(dropped, errors.NewAlignment(index, rest, units[rest].Text, "section abandoned"))
				}
				break
			}
			continue
		}

		if unit.Marked() {
			vec.Annotations = append(vec.Annotations, Annotation{
				Start:  start,
				End:    start + n,
				Label:  unit.Label,
				Entity: unit.Entity,
				Sense:  unit.Sense,
				Unit:   ui,
			})
		}
		cursor = start + n
	}

	return Section{Vector: vec, Dropped: dropped}
}

// find searches forward from cursor for a run of tokens whose text
// concatenates to target. It returns the run start and length.
func (a *Aligner) find(norms []string, cursor int, target string) (int, int, bool) {
	for p := cursor; p < len(norms); p++ {
		if a.opts.MaxSkip > 0 && p-cursor > a.opts.MaxSkip {
			break
		}
		if norms[p] == "" {
			continue
		}
		if n, ok := matchAt(norms, p, target); ok {
			return p, n, true
		}
	}
	return 0, 0, false
}

// matchAt reports whether the tokens starting at p concatenate to target,
// skipping whitespace tokens, and how many tokens the run spans.
func matchAt(norms []string, p int, target string) (int, bool) {
	var acc strings.Builder
	for k := p; k < len(norms); k++ {
		if norms[k] == "" {
			continue
		}
		acc.WriteString(norms[k])
		got := acc.String()
		if got == target {
			return k - p + 1, true
		}
		if !strings.HasPrefix(target, got) {
			return 0, false
		}
	}
	return 0, false
}

func normalizeToken(tok tokenize.Token) string {
	if tok.IsSpace() {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(tok.Text))
}

// normalizeUnit removes all whitespace so that a unit spanning several
// tokens compares against their concatenation.
func normalizeUnit(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return norm.NFC.String(text)
}

// Stream pulls section pairs from the two sources and aligns them one at
// a time. Sections are consumed strictly in order.
type Stream struct {
	aligner *Aligner
	text    TextSource
	ann     AnnotationSource
	index   int
	textEOF bool
	annEOF  bool
}

// Stream returns a pull iterator over the aligned sections of two sources.
func (a *Aligner) Stream(text TextSource, ann AnnotationSource) *Stream {
	return &Stream{aligner: a, text: text, ann: ann}
}

// Next aligns the next section pair. It returns io.EOF once both sources
// are exhausted. A section present in only one source is returned with
// Unpaired set: raw text fully unmarked, or overlay units all dropped.
func (s *Stream) Next() (Section, error) {
	var (
		text    TextSection
		ann     AnnotationSection
		hasText bool
		hasAnn  bool
		err     error
	)
	if !s.textEOF {
		text, err = s.text.Next()
		switch {
		case err == io.EOF:
			s.textEOF = true
		case err != nil:
			return Section{}, errors.Wrapf(err, "reading text section %d", s.index)
		default:
			hasText = true
		}
	}
	if !s.annEOF {
		ann, err = s.ann.Next()
		switch {
		case err == io.EOF:
			s.annEOF = true
		case err != nil:
			return Section{}, errors.Wrapf(err, "reading annotation section %d", s.index)
		default:
			hasAnn = true
		}
	}

	index := s.index
	s.index++

	switch {
	case hasText && hasAnn:
		return s.aligner.AlignSection(index, text, ann.Units), nil
	case hasText:
		sec := s.aligner.AlignSection(index, text, nil)
		sec.Unpaired = true
		sec.Dropped = append(sec.Dropped, errors.NewAlignment(index, -1, text.ID, "no annotation section"))
		return sec, nil
	case hasAnn:
		sec := Section{
			Vector:   AnnotatedTokenVector{Section: index, ID: ann.ID},
			Unpaired: true,
		}
		for ui, u := range ann.Units {
			sec.Dropped = append(sec.Dropped, errors.NewAlignment(index, ui, u.Text, "no text section"))
		}
		return sec, nil
	default:
		return Section{}, io.EOF
	}
}

// Alignment is the collected result of a whole document.
type Alignment struct {
	Vectors []AnnotatedTokenVector
	Dropped []*errors.AlignmentError
}

// Align drains both sources. Only source read failures are returned as
// errors; misalignments are reported in Dropped.
func (a *Aligner) Align(text TextSource, ann AnnotationSource) (*Alignment, error) {
	out := &Alignment{}
	stream := a.Stream(text, ann)
	for {
		sec, err := stream.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if len(sec.Vector.Tokens) > 0 {
			out.Vectors = append(out.Vectors, sec.Vector)
		}
		out.Dropped = append(out.Dropped, sec.Dropped...)
	}
}
