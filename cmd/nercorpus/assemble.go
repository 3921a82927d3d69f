package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/FocuswithJustin/nercorpus/core/align"
	"github.com/FocuswithJustin/nercorpus/core/cas"
	"github.com/FocuswithJustin/nercorpus/core/corpus"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
	"github.com/FocuswithJustin/nercorpus/internal/logging"
	"github.com/FocuswithJustin/nercorpus/internal/pipeline"
	"github.com/FocuswithJustin/nercorpus/internal/registry"
)

// AssembleCmd aligns Reuters text with SemDoc overlays.
type AssembleCmd struct {
	Text    string `arg:"" help:"Reuters text file, or a directory of them"`
	Overlay string `arg:"" help:"SemDoc overlay file, or a directory matched by file stem"`

	Out            string  `short:"o" default:"-" help:"Output file (- for stdout)"`
	Threshold      float64 `default:"0" env:"NERCORPUS_THRESHOLD" help:"Minimum fine-sense confidence for a fragment to keep its category"`
	Policy         string  `default:"section" enum:"section,unit" help:"After a failed unit skip the rest of the section or only the unit"`
	MaxSkip        int     `name:"max-skip" default:"0" help:"Most raw tokens passed over while searching for a unit (0 = unbounded)"`
	WSD            bool    `name:"wsd" help:"Emit token, sense and type columns instead of NER labels"`
	NoContractions bool    `name:"no-contractions" help:"Keep contractions as single tokens"`
}

// AssembleStats summarizes an assemble run.
type AssembleStats struct {
	Pairs    int `json:"pairs"`
	Missing  int `json:"missing_overlay"`
	Failed   int `json:"failed"`
	Sections int `json:"sections"`
	Tokens   int `json:"tokens"`
	Marked   int `json:"marked"`
	Dropped  int `json:"dropped_units"`
}

type assembled struct {
	pair    pair
	output  []byte
	result  *align.Alignment
	err     error
	elapsed time.Duration
}

func (c *AssembleCmd) options() (corpus.AssembleOptions, error) {
	topts := tokenize.DefaultOptions()
	topts.SplitContractions = !c.NoContractions
	tok, err := tokenize.New(topts)
	if err != nil {
		return corpus.AssembleOptions{}, err
	}
	policy := align.SkipSection
	if c.Policy == "unit" {
		policy = align.SkipUnit
	}
	if c.MaxSkip < 0 {
		return corpus.AssembleOptions{}, errors.NewValidation("max-skip", "must not be negative")
	}
	return corpus.AssembleOptions{
		Tokenizer: tok,
		Align:     align.Options{Policy: policy, MaxSkip: c.MaxSkip},
		SemDoc:    corpus.SemDocOptions{Threshold: c.Threshold},
		WSD:       c.WSD,
	}, nil
}

func (c *AssembleCmd) Run(g *Globals) (err error) {
	opts, err := c.options()
	if err != nil {
		return err
	}
	asm, err := corpus.NewAssembler(opts)
	if err != nil {
		return err
	}
	pairs, missing, err := pairInputs(c.Text, c.Overlay)
	if err != nil {
		return err
	}

	rec, ctx, err := g.startRun(registry.KindAssemble, []string{c.Text, c.Overlay})
	if err != nil {
		return err
	}
	stats := AssembleStats{Pairs: len(pairs), Missing: len(missing)}
	defer func() { rec.finish(ctx, stats, err) }()

	for _, name := range missing {
		logging.WarnContext(ctx, "overlay_missing", "document", name)
	}

	results, err := pipeline.Map(ctx, g.Workers, pairs, func(_ context.Context, p pair) assembled {
		return assemblePair(asm, p)
	})
	if err != nil {
		return err
	}

	out, closeOut, err := c.output(g)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); err == nil {
			err = cerr
		}
	}()

	for _, r := range results {
		source := r.pair.text.name
		if r.err != nil {
			stats.Failed++
			logging.ErrorContext(ctx, "assemble_failed", "document", source, "error", r.err.Error())
			continue
		}
		for _, d := range r.result.Dropped {
			logging.AlignmentDrop(ctx, d, "document", source)
		}
		rec.drops(ctx, source, r.result.Dropped)

		stats.Sections += len(r.result.Vectors)
		stats.Dropped += len(r.result.Dropped)
		entities := 0
		for _, v := range r.result.Vectors {
			stats.Tokens += len(v.Tokens)
			stats.Marked += v.MarkedCount()
			entities += len(v.Entities())
		}

		if _, err := out.Write(r.output); err != nil {
			return errors.NewIO("write", c.Out, err)
		}
		rec.document(ctx, source, cas.Sum(r.output))
		logging.DocumentEmitted(ctx, source, len(r.result.Vectors), entities)
		logging.Duration(ctx, "assemble", r.elapsed, "document", source)
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", stats.Failed, stats.Pairs)
	}
	return nil
}

func assemblePair(asm *corpus.Assembler, p pair) (res assembled) {
	start := time.Now()
	res.pair = p
	defer func() { res.elapsed = time.Since(start) }()

	text, err := p.text.open()
	if err != nil {
		res.err = err
		return res
	}
	defer text.Close()
	overlay, err := p.overlay.open()
	if err != nil {
		res.err = err
		return res
	}
	defer overlay.Close()

	res.result, res.err = asm.Align(text, overlay)
	if res.err != nil {
		return res
	}
	var buf bytes.Buffer
	if res.err = asm.WriteTraining(&buf, res.result); res.err != nil {
		return res
	}
	res.output = buf.Bytes()
	return res
}

func (c *AssembleCmd) output(g *Globals) (io.Writer, func() error, error) {
	if c.Out == "" || c.Out == "-" {
		return g.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return nil, nil, errors.NewIO("create", c.Out, err)
	}
	return f, f.Close, nil
}
