package corpus

import (
	"context"

	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/reconcile"
	"github.com/FocuswithJustin/nercorpus/core/span"
)

// Predictor recognizes entities in free text. Offsets of the returned
// entities are relative to text.
type Predictor interface {
	Predict(ctx context.Context, text string) ([]ner.Entity, error)
}

// CombineStats summarizes a combination run.
type CombineStats struct {
	Documents  int `json:"documents"`
	Paragraphs int `json:"paragraphs"`
	Sentences  int `json:"sentences"`

	UserEntities       int `json:"user_entities"`
	PredictedKept      int `json:"predicted_kept"`
	PredictedDiscarded int `json:"predicted_discarded"`

	// CrossSentence counts predicted entities that survived reconciliation
	// but span a sentence boundary and so cannot be emitted inline.
	CrossSentence int `json:"cross_sentence"`

	PredictFailures int `json:"predict_failures"`
}

// Merge returns the sum of two stats.
func (s CombineStats) Merge(o CombineStats) CombineStats {
	s.Documents += o.Documents
	s.Paragraphs += o.Paragraphs
	s.Sentences += o.Sentences
	s.UserEntities += o.UserEntities
	s.PredictedKept += o.PredictedKept
	s.PredictedDiscarded += o.PredictedDiscarded
	s.CrossSentence += o.CrossSentence
	s.PredictFailures += o.PredictFailures
	return s
}

// ParagraphResult is the outcome of combining one paragraph.
type ParagraphResult struct {
	Paragraph Paragraph
	Result    reconcile.Result

	// PredictErr is the predictor failure, if any. The paragraph is then
	// combined with an empty predicted layer.
	PredictErr error
}

// Combiner merges the gold entities of ENAMEX documents with entities
// predicted over the same text.
type Combiner struct {
	predictor Predictor
}

// NewCombiner returns a Combiner using p for the predicted layer.
func NewCombiner(p Predictor) *Combiner {
	return &Combiner{predictor: p}
}

// CombineParagraph lays out p, predicts entities over the paragraph text,
// reconciles them with the gold entities and redistributes the survivors
// to their sentences.
func (c *Combiner) CombineParagraph(ctx context.Context, p Paragraph) (ParagraphResult, CombineStats) {
	p = p.Layout()
	stats := CombineStats{Paragraphs: 1, Sentences: len(p.Sentences)}

	user := p.Entities()
	for i := range user {
		user[i].Origin = ner.OriginUser
	}
	stats.UserEntities = len(user)

	var predicted []ner.Entity
	res := ParagraphResult{}
	if c.predictor != nil {
		var err error
		predicted, err = c.predictor.Predict(ctx, p.Text())
		if err != nil {
			res.PredictErr = err
			stats.PredictFailures = 1
			predicted = nil
		}
	}
	for i := range predicted {
		predicted[i].Origin = ner.OriginPredicted
	}

	res.Result = reconcile.Reconcile(user, predicted)
	stats.PredictedKept = res.Result.Count(reconcile.Secondary)
	stats.PredictedDiscarded = len(res.Result.Discarded)

	out := p
	out.Sentences = make([]Sentence, len(p.Sentences))
	for i, s := range p.Sentences {
		s.Entities = nil
		out.Sentences[i] = s
	}
	for _, entry := range res.Result.Entries {
		si := sentenceFor(out.Sentences, entry.Entity.Span)
		if si < 0 {
			if entry.Layer == reconcile.Secondary {
				stats.CrossSentence++
			}
			continue
		}
		s := &out.Sentences[si]
		s.Entities = append(s.Entities, entry.Entity.WithSpan(entry.Entity.Span.Shift(-s.Offset.Start)))
	}
	res.Paragraph = out
	return res, stats
}

// CombineDocument combines every paragraph of doc. The returned document
// is renamed with CombinedName. Predictor failures are reported per
// paragraph and never abort the document.
func (c *Combiner) CombineDocument(ctx context.Context, doc Document) (Document, []ParagraphResult, CombineStats) {
	out := Document{Name: CombinedName(doc.Name), Paragraphs: make([]Paragraph, 0, len(doc.Paragraphs))}
	stats := CombineStats{Documents: 1}
	results := make([]ParagraphResult, 0, len(doc.Paragraphs))
	for _, p := range doc.Paragraphs {
		res, ps := c.CombineParagraph(ctx, p)
		out.Paragraphs = append(out.Paragraphs, res.Paragraph)
		results = append(results, res)
		stats = stats.Merge(ps)
	}
	return out, results, stats
}

func sentenceFor(sentences []Sentence, sp span.Span) int {
	for i, s := range sentences {
		if s.Offset.Contains(sp) {
			return i
		}
	}
	return -1
}
