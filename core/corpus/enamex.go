package corpus

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/encoding"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/span"
	"github.com/FocuswithJustin/nercorpus/core/xml"
)

// SecondaryLayer is the ENAMEX subType value marking predicted entities.
const SecondaryLayer = "2"

// EnamexReader pulls documents from an ENAMEX training file one at a time.
type EnamexReader struct {
	stream *xml.Stream
}

// NewEnamexReader returns a reader over the document elements of r.
func NewEnamexReader(r io.Reader) (*EnamexReader, error) {
	stream, err := xml.NewStream(r, "//document")
	if err != nil {
		return nil, err
	}
	return &EnamexReader{stream: stream}, nil
}

// Next returns the next document or io.EOF.
func (r *EnamexReader) Next() (Document, error) {
	n, err := r.stream.Next()
	if err == io.EOF {
		return Document{}, io.EOF
	}
	if err != nil {
		return Document{}, &errors.ParseError{Format: "enamex", Message: err.Error(), Err: err}
	}
	return readDocument(n), nil
}

// ReadEnamex reads every document of r.
func ReadEnamex(r io.Reader) ([]Document, error) {
	er, err := NewEnamexReader(r)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for {
		doc, err := er.Next()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
}

func readDocument(n *xml.Node) Document {
	doc := Document{Name: n.Attr("name")}
	if doc.Name == "" {
		doc.Name = n.Attr("xml:id")
	}
	for _, p := range n.ChildrenNamed("p") {
		para := Paragraph{ID: p.Attr("xml:id"), Lang: p.Attr("xml:lang")}
		for _, s := range p.ChildrenNamed("sentence") {
			para.Sentences = append(para.Sentences, readSentence(s))
		}
		doc.Paragraphs = append(doc.Paragraphs, para)
	}
	return doc
}

// readSentence rebuilds the sentence text from its mixed content. Every
// ENAMEX child becomes a gold entity at its offset in that text.
func readSentence(n *xml.Node) Sentence {
	s := Sentence{ID: n.Attr("xml:id")}
	var b strings.Builder
	for _, c := range n.Content() {
		if c.IsText() || c.Name() != "ENAMEX" {
			b.WriteString(c.Text())
			continue
		}
		text := c.Text()
		start := b.Len()
		b.WriteString(text)

		t, err := ner.ParseType(c.Attr("type"))
		if err != nil {
			t = ner.Unknown
		}
		e := ner.NewEntity(text, t, span.New(start, b.Len()))
		e.Origin = ner.OriginUser
		e.Confidence = 1.0
		if c.Attr("subType") == SecondaryLayer {
			e.Origin = ner.OriginPredicted
			e.Confidence = 0
		}
		s.Entities = append(s.Entities, e)
	}
	s.Text = b.String()
	return s
}

// CombinedName returns the output file name for a combined corpus file:
// the extension of base is replaced by ".2layers.xml".
func CombinedName(base string) string {
	base = filepath.Base(base)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".2layers.xml"
}

// RowsName returns the name of the training rows file written next to a
// combined corpus file: "<stem>.2layers.tsv".
func RowsName(base string) string {
	return strings.TrimSuffix(CombinedName(base), ".xml") + ".tsv"
}

const (
	enamexHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"yes\"?>\n<corpus>\n\t<subcorpus>\n"
	enamexFooter = "\t</subcorpus>\n</corpus>\n"
)

// EnamexWriter streams documents as an ENAMEX corpus file. Close writes
// the footer; it does not close the underlying writer.
type EnamexWriter struct {
	w       *bufio.Writer
	started bool
	closed  bool

	// Skipped counts entities that could not be emitted because they
	// overlap an earlier entity or fall outside their sentence.
	Skipped int
}

// NewEnamexWriter wraps w.
func NewEnamexWriter(w io.Writer) *EnamexWriter {
	return &EnamexWriter{w: bufio.NewWriter(w)}
}

// WriteDocument appends one document.
func (ew *EnamexWriter) WriteDocument(doc Document) error {
	if ew.closed {
		return errors.NewValidation("writer", "write after close")
	}
	if !ew.started {
		ew.w.WriteString(enamexHeader)
		ew.started = true
	}
	fmt.Fprintf(ew.w, "\t\t<document name=\"%s\">\n", encoding.EscapeXMLAttr(doc.Name))
	for pi, p := range doc.Paragraphs {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("P%d", pi)
		}
		lang := p.Lang
		if lang == "" {
			lang = "en"
		}
		fmt.Fprintf(ew.w, "\t\t\t<p xml:lang=\"%s\" xml:id=\"%s\">\n",
			encoding.EscapeXMLAttr(lang), encoding.EscapeXMLAttr(id))
		for si, s := range p.Sentences {
			sid := s.ID
			if sid == "" {
				sid = fmt.Sprintf("%sE%d", id, si)
			}
			fmt.Fprintf(ew.w, "\t\t\t\t<sentence xml:id=\"%s\">", encoding.EscapeXMLAttr(sid))
			ew.writeSentence(s)
			ew.w.WriteString("</sentence>\n")
		}
		ew.w.WriteString("\t\t\t</p>\n")
	}
	ew.w.WriteString("\t\t</document>\n")
	return ew.w.Flush()
}

func (ew *EnamexWriter) writeSentence(s Sentence) {
	entities := append([]ner.Entity(nil), s.Entities...)
	ner.SortEntities(entities)

	pos := 0
	for _, e := range entities {
		if e.Span.Start < pos || e.Span.End > len(s.Text) || !e.Span.Valid() || e.Span.IsEmpty() {
			ew.Skipped++
			continue
		}
		ew.w.WriteString(encoding.EscapeXMLText(s.Text[pos:e.Span.Start]))
		if e.Origin == ner.OriginPredicted {
			fmt.Fprintf(ew.w, "<ENAMEX subType=\"%s\" type=\"%s\">", SecondaryLayer, e.Type)
		} else {
			fmt.Fprintf(ew.w, "<ENAMEX type=\"%s\">", e.Type)
		}
		ew.w.WriteString(encoding.EscapeXMLText(e.Span.Slice(s.Text)))
		ew.w.WriteString("</ENAMEX>")
		pos = e.Span.End
	}
	ew.w.WriteString(encoding.EscapeXMLText(s.Text[pos:]))
}

// Close writes the footer. An empty writer still produces a valid corpus.
func (ew *EnamexWriter) Close() error {
	if ew.closed {
		return nil
	}
	if !ew.started {
		ew.w.WriteString(enamexHeader)
	}
	ew.closed = true
	ew.w.WriteString(enamexFooter)
	return ew.w.Flush()
}
