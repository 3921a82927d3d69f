package corpus

import (
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/align"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
	"github.com/FocuswithJustin/nercorpus/core/xml"
)

// ReutersSource reads a Reuters-style news item. Every headline and every
// paragraph of the text body becomes one section, in document order.
type ReutersSource struct {
	tokenizer *tokenize.Tokenizer
	nodes     []*xml.Node
	pos       int
}

// NewReutersSource parses r and returns a TextSource over its sections.
func NewReutersSource(r io.Reader, t *tokenize.Tokenizer) (*ReutersSource, error) {
	doc, err := xml.ParseReader(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "reuters", Message: err.Error(), Err: err}
	}
	src := &ReutersSource{tokenizer: t}
	if root := doc.Root(); root != nil {
		src.collect(root, false)
	}
	return src, nil
}

// collect walks the tree in document order so that headlines and
// paragraphs keep their relative positions.
func (s *ReutersSource) collect(n *xml.Node, inText bool) {
	for _, c := range n.Children() {
		switch {
		case c.Name() == "headline":
			s.nodes = append(s.nodes, c)
		case c.Name() == "p" && inText:
			s.nodes = append(s.nodes, c)
		default:
			s.collect(c, inText || c.Name() == "text")
		}
	}
}

// Len returns the number of sections.
func (s *ReutersSource) Len() int {
	return len(s.nodes)
}

// Next returns the next section or io.EOF.
func (s *ReutersSource) Next() (align.TextSection, error) {
	if s.pos >= len(s.nodes) {
		return align.TextSection{}, io.EOF
	}
	n := s.nodes[s.pos]
	id := fmt.Sprintf("%s%d", n.Name(), s.pos)
	s.pos++

	text := strings.TrimSpace(n.Text())
	return align.TextSection{
		ID:     id,
		Text:   text,
		Tokens: s.tokenizer.Tokenize(text),
	}, nil
}
