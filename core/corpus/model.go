// Package corpus reads and writes the document formats the toolkit works
// with: Reuters-style raw text, SemDoc annotation overlays and ENAMEX
// training documents. It also drives the two corpus jobs, assembling
// training data from a raw/overlay pair and combining gold ENAMEX
// entities with predicted ones.
package corpus

import (
	"bufio"
	"io"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/encoding"
	"github.com/FocuswithJustin/nercorpus/core/mapping"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/span"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
)

// Sentence is one sentence of a training document. Entity spans are
// relative to Text.
type Sentence struct {
	ID       string
	Text     string
	Entities []ner.Entity

	// Offset locates the sentence inside its paragraph once the paragraph
	// has been laid out.
	Offset span.Span

	// Tokens is filled by Tokenized.
	Tokens []tokenize.Token
}

// Tokenized returns a copy of s with its tokens computed by t.
func (s Sentence) Tokenized(t *tokenize.Tokenizer) Sentence {
	s.Tokens = t.Tokenize(s.Text)
	return s
}

// EntityIndex returns, for every token, the index of the entity whose span
// touches it, or -1. A token only partly covered by an entity belongs to
// it; when entities share a token the first one listed wins.
func (s Sentence) EntityIndex() []int {
	out := make([]int, len(s.Tokens))
	for i := range out {
		out[i] = -1
	}
	spans := make([]span.Span, len(s.Entities))
	for j, e := range s.Entities {
		spans[j] = e.Span
	}
	for j, indices := range mapping.SpanIndices(s.Tokens, spans) {
		for _, i := range indices {
			if out[i] < 0 {
				out[i] = j
			}
		}
	}
	return out
}

// TrainingLines renders "token\tlabel" lines for the tokenized sentence.
func (s Sentence) TrainingLines() []string {
	idx := s.EntityIndex()
	labels := make([]string, len(idx))
	for i, j := range idx {
		if j < 0 {
			labels[i] = ner.Outside
			continue
		}
		labels[i] = s.Entities[j].Type.String()
	}
	bio := ner.BIOLabels(labels, idx)
	out := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		out[i] = encoding.EscapeField(tok.Text) + "\t" + bio[i]
	}
	return out
}

// Paragraph groups consecutive sentences. Its text is the plain
// concatenation of the sentence texts.
type Paragraph struct {
	ID        string
	Lang      string
	Sentences []Sentence
}

// Text returns the paragraph text.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, s := range p.Sentences {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Layout returns a copy of p with every sentence Offset set.
func (p Paragraph) Layout() Paragraph {
	out := p
	out.Sentences = make([]Sentence, len(p.Sentences))
	pos := 0
	for i, s := range p.Sentences {
		s.Offset = span.New(pos, pos+len(s.Text))
		pos += len(s.Text)
		out.Sentences[i] = s
	}
	return out
}

// Entities returns the sentence entities shifted to paragraph offsets,
// sorted by start. p must have been laid out.
func (p Paragraph) Entities() []ner.Entity {
	var out []ner.Entity
	for _, s := range p.Sentences {
		for _, e := range s.Entities {
			out = append(out, e.WithSpan(e.Span.Shift(s.Offset.Start)))
		}
	}
	ner.SortEntities(out)
	return out
}

// Document is a named list of paragraphs.
type Document struct {
	Name       string
	Paragraphs []Paragraph
}

// SentenceCount returns the number of sentences in d.
func (d Document) SentenceCount() int {
	n := 0
	for _, p := range d.Paragraphs {
		n += len(p.Sentences)
	}
	return n
}

// EntityCount returns the number of entities in d.
func (d Document) EntityCount() int {
	n := 0
	for _, p := range d.Paragraphs {
		for _, s := range p.Sentences {
			n += len(s.Entities)
		}
	}
	return n
}

// WriteRows writes the training rows of every sentence of doc, tokenized
// by t, with a blank line after each sentence.
func WriteRows(w io.Writer, doc Document, t *tokenize.Tokenizer) error {
	bw := bufio.NewWriter(w)
	for _, p := range doc.Paragraphs {
		for _, s := range p.Sentences {
			for _, line := range s.Tokenized(t).TrainingLines() {
				bw.WriteString(line)
				bw.WriteByte('\n')
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}
