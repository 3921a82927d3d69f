package corpus

import (
	"bufio"
	"io"

	"github.com/FocuswithJustin/nercorpus/core/align"
	"github.com/FocuswithJustin/nercorpus/core/encoding"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
)

// AssembleOptions configures an Assembler.
type AssembleOptions struct {
	Tokenizer *tokenize.Tokenizer
	Align     align.Options
	SemDoc    SemDocOptions

	// WSD emits "token\tsense\ttype" lines instead of NER labels.
	WSD bool
}

// Assembler turns a raw text file and its SemDoc overlay into training
// lines. It holds no per-document state.
type Assembler struct {
	opts    AssembleOptions
	aligner *align.Aligner
}

// NewAssembler returns an Assembler. A nil tokenizer selects the default
// one.
func NewAssembler(opts AssembleOptions) (*Assembler, error) {
	if opts.Tokenizer == nil {
		t, err := tokenize.New(tokenize.DefaultOptions())
		if err != nil {
			return nil, err
		}
		opts.Tokenizer = t
	}
	return &Assembler{opts: opts, aligner: align.New(opts.Align)}, nil
}

// Align reads both sources and aligns them section by section.
func (a *Assembler) Align(text, overlay io.Reader) (*align.Alignment, error) {
	src, err := NewReutersSource(text, a.opts.Tokenizer)
	if err != nil {
		return nil, err
	}
	ann, err := NewSemDocSource(overlay, a.opts.SemDoc)
	if err != nil {
		return nil, err
	}
	return a.aligner.Align(src, ann)
}

// WriteTraining writes the aligned sections to w, one token per line with
// a blank line after every section.
func (a *Assembler) WriteTraining(w io.Writer, res *align.Alignment) error {
	bw := bufio.NewWriter(w)
	for _, v := range res.Vectors {
		var lines []string
		if a.opts.WSD {
			lines = SenseLines(v)
		} else {
			lines = v.TrainingLines()
		}
		for _, l := range lines {
			bw.WriteString(l)
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SenseLines renders "token\tsense\ttype" lines. The sense column carries
// the primary entity subtype, ner.Outside when there is none.
func SenseLines(v align.AnnotatedTokenVector) []string {
	labels := v.Labels()
	out := make([]string, len(v.Tokens))
	for i, tok := range v.Tokens {
		sense := ner.Outside
		for _, a := range v.AnnotationsAt(i) {
			if a.Entity != nil && a.Entity.PrimarySubType() != "" {
				sense = a.Entity.PrimarySubType()
				break
			}
		}
		out[i] = encoding.EscapeField(tok.Text) + "\t" + sense + "\t" + labels[i]
	}
	return out
}
