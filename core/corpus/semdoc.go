package corpus

import (
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/align"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/xml"
)

const subTypePrefix = "NESUBTYPE_"

// SemDocOptions configures the overlay reader.
type SemDocOptions struct {
	// Threshold is the minimum fine-sense confidence (fs@pc) for a
	// fragment to keep its category. Weaker fragments become unmarked.
	Threshold float64
}

// SenseInfo is the metadata a SemDoc file declares for one fine sense key.
type SenseInfo struct {
	Sense ner.Sense

	// Entity is set when the sense is a named entity (isne).
	Entity *ner.Entity
}

// SemDocSource reads a SemDoc overlay. Each para element is a section and
// each frag inside it is one annotation unit.
type SemDocSource struct {
	opts   SemDocOptions
	senses map[string]SenseInfo
	paras  []*xml.Node
	pos    int
}

// NewSemDocSource parses r. Sense metadata is collected up front because
// fragments may reference senses declared anywhere in the file.
func NewSemDocSource(r io.Reader, opts SemDocOptions) (*SemDocSource, error) {
	doc, err := xml.ParseReader(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "semdoc", Message: err.Error(), Err: err}
	}

	senseNodes, err := doc.XPath("//sense")
	if err != nil {
		return nil, err
	}
	senses := make(map[string]SenseInfo, len(senseNodes))
	for _, n := range senseNodes {
		key := n.Attr("fsk")
		if key == "" {
			continue
		}
		if _, seen := senses[key]; seen {
			continue
		}
		senses[key] = readSense(n)
	}

	paras, err := doc.XPath("//para")
	if err != nil {
		return nil, err
	}
	return &SemDocSource{opts: opts, senses: senses, paras: paras}, nil
}

func readSense(n *xml.Node) SenseInfo {
	info := SenseInfo{Sense: ner.Sense{
		FineSense:   n.Attr("fsk"),
		CoarseSense: n.Attr("csk"),
	}}
	for _, d := range n.ChildrenNamed("desc") {
		info.Sense.Description = strings.TrimSpace(d.Text())
		break
	}
	if _, isNE := n.LookupAttr("isne"); !isNE {
		return info
	}

	e := ner.Entity{Origin: ner.OriginUser}
	for _, ne := range n.ChildrenNamed("neInfo") {
		for _, c := range ne.Children() {
			switch c.Name() {
			case "neT":
				if e.Type == ner.Unknown {
					e.Type = ner.FromIdilia(c.Text())
				}
			case "neST":
				e = e.WithSubType(strings.TrimPrefix(strings.TrimSpace(c.Text()), subTypePrefix))
			}
		}
	}
	if e.Type == ner.Unknown {
		e.Type = ner.FromIdilia(info.Sense.CoarseSense)
	}
	info.Entity = &e
	return info
}

// Senses returns the sense metadata keyed by fine sense key.
func (s *SemDocSource) Senses() map[string]SenseInfo {
	return s.senses
}

// Len returns the number of sections.
func (s *SemDocSource) Len() int {
	return len(s.paras)
}

// Next returns the units of the next para or io.EOF.
func (s *SemDocSource) Next() (align.AnnotationSection, error) {
	if s.pos >= len(s.paras) {
		return align.AnnotationSection{}, io.EOF
	}
	para := s.paras[s.pos]
	id := para.Attr("id")
	if id == "" {
		id = fmt.Sprintf("para%d", s.pos)
	}
	s.pos++

	frags, err := para.XPath(".//frag")
	if err != nil {
		return align.AnnotationSection{}, err
	}
	sec := align.AnnotationSection{ID: id, Units: make([]align.Unit, 0, len(frags))}
	for _, f := range frags {
		sec.Units = append(sec.Units, s.unit(f))
	}
	return sec, nil
}

// unit converts one frag. The surface text comes from the first dep@src,
// falling back to the frag's own character data.
func (s *SemDocSource) unit(f *xml.Node) align.Unit {
	var (
		u            align.Unit
		fine, coarse *xml.Node
		own          strings.Builder
	)
	for _, c := range f.Content() {
		if c.IsText() {
			own.WriteString(c.Text())
			continue
		}
		switch c.Name() {
		case "dep":
			if src := c.Attr("src"); src != "" && u.Text == "" {
				u.Text = src
			}
		case "fs":
			if fine == nil {
				fine = c
			}
		case "cs":
			if coarse == nil {
				coarse = c
			}
		}
	}
	if u.Text == "" {
		u.Text = strings.TrimSpace(own.String())
	}
	if fine == nil {
		return u
	}

	info, ok := s.senses[fine.Attr("sk")]
	if !ok {
		return u
	}
	sense := info.Sense
	sense.FineConfidence, _ = fine.AttrFloat("pc", 0)
	if coarse != nil {
		if sk := coarse.Attr("sk"); sk != "" {
			sense.CoarseSense = sk
		}
		sense.CoarseConfidence, _ = coarse.AttrFloat("pc", 0)
	}
	u.Sense = &sense

	if info.Entity == nil || info.Entity.Type == ner.Unknown {
		return u
	}
	if !sense.Confident(s.opts.Threshold) {
		return u
	}
	e := info.Entity.Clone()
	e.RawText = u.Text
	e.Confidence = sense.FineConfidence
	e.Sense = &sense
	u.Entity = &e
	u.Label = e.Type.String()
	return u
}
