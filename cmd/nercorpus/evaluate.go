package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/scoring"
	"github.com/FocuswithJustin/nercorpus/internal/archive"
	"github.com/FocuswithJustin/nercorpus/internal/classifier"
	"github.com/FocuswithJustin/nercorpus/internal/logging"
	"github.com/FocuswithJustin/nercorpus/internal/registry"
)

// EvaluateCmd scores tagged rows, or tags (token, expected) rows through
// the classifier first.
type EvaluateCmd struct {
	Files []string `arg:"" optional:"" help:"Rows files, optionally compressed (default stdin)"`

	Negative  string `default:"O" help:"Label meaning no entity"`
	Separator string `help:"Field separator (default tab)"`
	Annotated string `help:"Write every row with its predicted label appended to this file"`
	JSON      bool   `help:"Print the evaluation as JSON"`

	Classifier string        `help:"Tag rows through this recognizer before scoring; rows then carry only token and expected label"`
	Rate       float64       `default:"20" help:"Classifier requests per second (0 = unlimited)"`
	Timeout    time.Duration `default:"30s" help:"Classifier request timeout"`
	CoNLL      bool          `name:"conll" help:"Translate predicted labels to CoNLL classes (per, loc, org, misc, O)"`
}

type fileEvaluation struct {
	Source string `json:"source"`
	scoring.Evaluation
}

type evaluateOutput struct {
	scoring.Evaluation
	Precision *float64         `json:"precision"`
	Recall    *float64         `json:"recall"`
	F1        *float64         `json:"f1"`
	Files     []fileEvaluation `json:"files"`
}

// defined returns nil for NaN so the metric encodes as null.
func defined(v float64) *float64 {
	if v != v {
		return nil
	}
	return &v
}

func (c *EvaluateCmd) tagger() (tagger, error) {
	if c.Classifier == "" {
		return nil, nil
	}
	opts := classifier.DefaultOptions()
	opts.Endpoint = c.Classifier
	opts.RatePerSecond = c.Rate
	opts.Timeout = c.Timeout
	opts.UserAgent = "nercorpus/" + version
	return classifier.New(opts)
}

func (c *EvaluateCmd) Run(g *Globals) (err error) {
	tag, err := c.tagger()
	if err != nil {
		return err
	}
	opts := scoring.Options{Negative: c.Negative, Separator: c.Separator}
	if c.CoNLL {
		opts.Translate = ner.CoNLLLabel
	}
	if c.Annotated != "" {
		f, err := os.Create(c.Annotated)
		if err != nil {
			return errors.NewIO("create", c.Annotated, err)
		}
		defer f.Close()
		opts.Annotated = f
	}

	files := c.Files
	if len(files) == 0 {
		files = []string{"-"}
	}

	rec, ctx, err := g.startRun(registry.KindEvaluate, files)
	if err != nil {
		return err
	}
	var total scoring.Evaluation
	defer func() { rec.finish(ctx, total, err) }()

	var perFile []fileEvaluation
	for _, name := range files {
		source := name
		if name != "-" {
			source = filepath.Base(name)
		}
		ev, err := c.evaluateFile(ctx, g, name, source, tag, opts)
		if err != nil {
			return err
		}
		rec.evaluation(ctx, source, ev)
		logging.EvaluationSummary(ctx, ev.Tokens, ev.Counters.Precision(), ev.Counters.Recall(), ev.Counters.F1(),
			"source", source, "skipped", ev.Skipped)

		total = total.Merge(ev)
		perFile = append(perFile, fileEvaluation{Source: source, Evaluation: ev})
	}

	if c.JSON {
		return writeJSON(g, evaluateOutput{
			Evaluation: total,
			Precision:  defined(total.Counters.Precision()),
			Recall:     defined(total.Counters.Recall()),
			F1:         defined(total.Counters.F1()),
			Files:      perFile,
		})
	}
	if _, err = fmt.Fprint(g.stdout, total.Report()); err != nil {
		return err
	}
	for _, f := range perFile {
		if len(f.Malformed) == 0 {
			continue
		}
		lines := make([]string, len(f.Malformed))
		for i, n := range f.Malformed {
			lines[i] = strconv.Itoa(n)
		}
		fmt.Fprintf(g.stdout, "  %s: lines %s\n", f.Source, strings.Join(lines, ", "))
	}
	return nil
}

func (c *EvaluateCmd) evaluateFile(ctx context.Context, g *Globals, name, source string, tag tagger, opts scoring.Options) (scoring.Evaluation, error) {
	var r io.Reader = g.stdin
	if name != "-" {
		rc, err := archive.Open(name)
		if err != nil {
			return scoring.Evaluation{}, err
		}
		defer rc.Close()
		r = rc
	}
	if tag != nil {
		tagged, err := tagRows(ctx, tag, r, c.Separator, func(err error) {
			logging.ClassifierError(ctx, c.Classifier, err, "source", source)
		})
		if err != nil {
			return scoring.Evaluation{}, err
		}
		r = tagged
	}
	return scoring.Evaluate(r, opts)
}
