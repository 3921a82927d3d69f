package scoring

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/errors"
)

// Options configures row parsing and scoring.
type Options struct {
	// Negative is the "no entity" label. Empty means DefaultNegative.
	Negative string

	// Separator splits a row into fields. Empty means a tab.
	Separator string

	// Annotated, when set, receives every row with its fields joined by
	// spaces and the predicted label appended.
	Annotated io.Writer

	// Translate, when set, maps every predicted label before it is scored,
	// for example ner.CoNLLLabel.
	Translate func(label string) string
}

func (o Options) withDefaults() Options {
	if o.Negative == "" {
		o.Negative = DefaultNegative
	}
	if o.Separator == "" {
		o.Separator = "\t"
	}
	return o
}

// Row is one token of an evaluation file. Leading fields such as the
// surface form are carried but not interpreted.
type Row struct {
	Fields    []string
	Expected  string
	Predicted string
}

// ParseRow splits a line into fields. The last two fields are the expected
// and predicted labels.
func ParseRow(line, sep string) (Row, error) {
	if sep == "" {
		sep = "\t"
	}
	fields := strings.Split(strings.TrimRight(line, "\r\n"), sep)
	if len(fields) < 2 {
		return Row{}, &errors.ValidationError{
			Field:   "row",
			Value:   line,
			Message: fmt.Sprintf("expected at least 2 fields, got %d", len(fields)),
		}
	}
	return Row{
		Fields:    fields,
		Expected:  strings.TrimSpace(fields[len(fields)-2]),
		Predicted: strings.TrimSpace(fields[len(fields)-1]),
	}, nil
}

// Score counts a slice of rows.
func Score(rows []Row, negative string) ConfusionCounters {
	if negative == "" {
		negative = DefaultNegative
	}
	var c ConfusionCounters
	for _, r := range rows {
		c = c.Add(Classify(r.Expected, r.Predicted, negative))
	}
	return c
}

// Evaluation is the outcome of scoring a row stream.
type Evaluation struct {
	Counters  ConfusionCounters `json:"counters"`
	Tokens    int               `json:"tokens"`
	Sentences int               `json:"sentences"`

	// Skipped counts malformed rows. Malformed lists their 1-based line
	// numbers; merged evaluations keep only the count.
	Skipped   int   `json:"skipped"`
	Malformed []int `json:"malformed,omitempty"`
}

// Merge returns the sum of two evaluations. Line numbers belong to their
// own input, so the result carries none.
func (e Evaluation) Merge(o Evaluation) Evaluation {
	return Evaluation{
		Counters:  e.Counters.Merge(o.Counters),
		Tokens:    e.Tokens + o.Tokens,
		Sentences: e.Sentences + o.Sentences,
		Skipped:   e.Skipped + o.Skipped,
	}
}

// Evaluate reads rows from r, one token per line, with blank lines between
// sentences. Malformed rows are skipped and recorded; only read failures
// are returned as errors.
func Evaluate(r io.Reader, opts Options) (Evaluation, error) {
	opts = opts.withDefaults()
	var ev Evaluation

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	inSentence := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			inSentence = false
			if opts.Annotated != nil {
				if _, err := io.WriteString(opts.Annotated, "\n"); err != nil {
					return ev, errors.NewIO("write", "annotated output", err)
				}
			}
			continue
		}

		row, err := ParseRow(line, opts.Separator)
		if err != nil {
			ev.Skipped++
			ev.Malformed = append(ev.Malformed, lineNo)
			continue
		}
		if opts.Translate != nil {
			row.Predicted = opts.Translate(row.Predicted)
		}
		if !inSentence {
			ev.Sentences++
			inSentence = true
		}
		ev.Tokens++
		ev.Counters = ev.Counters.Add(Classify(row.Expected, row.Predicted, opts.Negative))

		if opts.Annotated != nil {
			out := strings.Join(row.Fields, " ") + " " + row.Predicted + "\n"
			if _, err := io.WriteString(opts.Annotated, out); err != nil {
				return ev, errors.NewIO("write", "annotated output", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ev, errors.NewIO("read", "evaluation rows", err)
	}
	return ev, nil
}

// Report renders the evaluation as text. Metrics are percentages with two
// decimals; undefined metrics print as "n/a".
func (e Evaluation) Report() string {
	c := e.Counters
	var b strings.Builder
	fmt.Fprintf(&b, "Total sentences: %d\n", e.Sentences)
	fmt.Fprintf(&b, "Total tokens: %d\n\n", e.Tokens)
	fmt.Fprintf(&b, "True Positive: %d\n", c.TruePositive)
	fmt.Fprintf(&b, "False Positive: %d\n", c.FalsePositive)
	fmt.Fprintf(&b, "True Negative: %d\n", c.TrueNegative)
	fmt.Fprintf(&b, "False Negative: %d\n", c.FalseNegative)
	b.WriteString("\nToken level\n-----------\n")
	fmt.Fprintf(&b, "Precision: %s\n", Percent(c.Precision()))
	fmt.Fprintf(&b, "Recall: %s\n", Percent(c.Recall()))
	fmt.Fprintf(&b, "f1: %s\n", Percent(c.F1()))
	if e.Skipped > 0 {
		fmt.Fprintf(&b, "\nSkipped malformed rows: %d\n", e.Skipped)
	}
	return b.String()
}

// Percent formats a ratio as a percentage with two decimals.
func Percent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v*100)
}
