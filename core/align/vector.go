package align

import (
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/span"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
)

// Annotation attaches a category to the token index range [Start, End).
type Annotation struct {
	Start  int
	End    int
	Label  string
	Entity *ner.Entity
	Sense  *ner.Sense

	// Unit is the index of the overlay unit that produced the annotation.
	Unit int
}

// AnnotatedTokenVector is one aligned section. Tokens are fixed once the
// vector is built; annotations refer to them by index.
type AnnotatedTokenVector struct {
	Section     int
	ID          string
	Text        string
	Tokens      []tokenize.Token
	Annotations []Annotation
}

// AnnotationsAt returns the annotations covering token i.
func (v AnnotatedTokenVector) AnnotationsAt(i int) []Annotation {
	var out []Annotation
	for _, a := range v.Annotations {
		if a.Start <= i && i < a.End {
			out = append(out, a)
		}
	}
	return out
}

// Labels returns the plain label of every token, ner.Outside when the
// token is unmarked. When annotations overlap, the first one wins.
func (v AnnotatedTokenVector) Labels() []string {
	labels, _ := v.labelRuns()
	return labels
}

// TrainingLines renders "token\tlabel" lines with the begin marker on the
// first token of every annotation.
func (v AnnotatedTokenVector) TrainingLines() []string {
	labels, runs := v.labelRuns()
	bio := ner.BIOLabels(labels, runs)
	out := make([]string, len(v.Tokens))
	for i, tok := range v.Tokens {
		out[i] = tok.Text + "\t" + bio[i]
	}
	return out
}

// Entities converts the annotations carrying an entity into character
// offset entities over the section text.
func (v AnnotatedTokenVector) Entities() []ner.Entity {
	var out []ner.Entity
	for _, a := range v.Annotations {
		if a.Entity == nil || a.Start >= a.End || a.End > len(v.Tokens) {
			continue
		}
		sp := span.New(v.Tokens[a.Start].Start, v.Tokens[a.End-1].End)
		e := a.Entity.WithSpan(sp)
		if raw := sp.Slice(v.Text); raw != "" {
			e.RawText = raw
		}
		out = append(out, e)
	}
	return out
}

// MarkedCount returns how many tokens carry a category.
func (v AnnotatedTokenVector) MarkedCount() int {
	n := 0
	for _, l := range v.Labels() {
		if l != ner.Outside {
			n++
		}
	}
	return n
}

func (v AnnotatedTokenVector) labelRuns() ([]string, []int) {
	labels := make([]string, len(v.Tokens))
	runs := make([]int, len(v.Tokens))
	for i := range labels {
		labels[i] = ner.Outside
		runs[i] = -1
	}
	for ai, a := range v.Annotations {
		for i := max(a.Start, 0); i < a.End && i < len(v.Tokens); i++ {
			if runs[i] >= 0 {
				continue
			}
			labels[i] = a.Label
			runs[i] = ai
		}
	}
	return labels, runs
}
