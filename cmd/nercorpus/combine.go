package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FocuswithJustin/nercorpus/core/cache"
	"github.com/FocuswithJustin/nercorpus/core/cas"
	"github.com/FocuswithJustin/nercorpus/core/corpus"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
	"github.com/FocuswithJustin/nercorpus/internal/archive"
	"github.com/FocuswithJustin/nercorpus/internal/classifier"
	"github.com/FocuswithJustin/nercorpus/internal/logging"
	"github.com/FocuswithJustin/nercorpus/internal/pipeline"
	"github.com/FocuswithJustin/nercorpus/internal/registry"
)

// CombineCmd adds a predicted entity layer to ENAMEX files.
type CombineCmd struct {
	Inputs []string `arg:"" help:"ENAMEX files, directories of them, or bundles"`

	OutDir string `name:"out-dir" short:"o" help:"Directory receiving the .2layers.xml files"`
	Bundle string `help:"Also write every output file into this bundle (.tar.xz, .tar.gz or .tar) with a manifest"`
	Store  string `env:"NERCORPUS_STORE" help:"Content-addressed store receiving every output file"`

	Classifier string        `env:"NERCORPUS_CLASSIFIER_URL" help:"Recognizer base URL; empty keeps only the gold layer"`
	Rate       float64       `default:"20" help:"Classifier requests per second (0 = unlimited)"`
	Timeout    time.Duration `default:"30s" help:"Classifier request timeout"`
	CacheSize  int           `name:"cache-size" default:"1000" help:"Paragraph predictions kept in memory (0 disables the cache)"`

	Rows bool `help:"Also write training rows of the combined sentences as <stem>.2layers.tsv"`
}

type combined struct {
	source   source
	name     string
	output   []byte
	rows     []byte
	stats    corpus.CombineStats
	failures []error
	skipped  int
	err      error
}

func (c *CombineCmd) predictor() (corpus.Predictor, *classifier.Client, error) {
	if c.Classifier == "" {
		return nil, nil, nil
	}
	opts := classifier.DefaultOptions()
	opts.Endpoint = c.Classifier
	opts.RatePerSecond = c.Rate
	opts.Timeout = c.Timeout
	opts.UserAgent = "nercorpus/" + version
	if c.CacheSize > 0 {
		cfg := cache.DefaultConfig()
		cfg.MaxSize = c.CacheSize
		opts.Cache = cache.NewPredictionCache(cfg)
	}
	client, err := classifier.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func (c *CombineCmd) Run(g *Globals) (err error) {
	if c.OutDir == "" && c.Bundle == "" {
		return errors.NewValidation("out-dir", "either --out-dir or --bundle is required")
	}
	sources, err := expandSources(c.Inputs)
	if err != nil {
		return err
	}
	pred, client, err := c.predictor()
	if err != nil {
		return err
	}
	var store *cas.Store
	if c.Store != "" {
		if store, err = cas.NewStore(c.Store); err != nil {
			return err
		}
	}
	if c.OutDir != "" {
		if err := os.MkdirAll(c.OutDir, 0755); err != nil {
			return errors.NewIO("mkdir", c.OutDir, err)
		}
	}

	rec, ctx, err := g.startRun(registry.KindCombine, c.Inputs)
	if err != nil {
		return err
	}
	var stats corpus.CombineStats
	defer func() { rec.finish(ctx, stats, err) }()

	var tok *tokenize.Tokenizer
	if c.Rows {
		if tok, err = tokenize.New(tokenize.DefaultOptions()); err != nil {
			return err
		}
	}
	combiner := corpus.NewCombiner(pred)
	results, err := pipeline.Map(ctx, g.Workers, sources, func(ctx context.Context, s source) combined {
		return combineSource(ctx, combiner, tok, s)
	})
	if err != nil {
		return err
	}

	var bundle *archive.BundleWriter
	var manifest *archive.Manifest
	if c.Bundle != "" {
		if bundle, err = archive.NewBundleWriter(c.Bundle, ""); err != nil {
			return err
		}
		manifest = archive.NewManifest(logging.GetRunID(ctx), "corpus combine "+strings.Join(c.Inputs, " "))
		manifest.CreatedAt = time.Now().UTC().Format(time.RFC3339)
		if client != nil {
			manifest.Metadata = map[string]string{"classifier": client.Endpoint()}
		}
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			logging.ErrorContext(ctx, "combine_failed", "document", r.source.name, "error", r.err.Error())
			continue
		}
		for _, perr := range r.failures {
			logging.ClassifierError(ctx, c.Classifier, perr, "document", r.source.name)
		}
		if r.skipped > 0 {
			logging.WarnContext(ctx, "entities_skipped", "document", r.name, "count", r.skipped)
		}
		stats = stats.Merge(r.stats)

		if err := c.emit(ctx, rec, bundle, manifest, store, r.name, r.output); err != nil {
			return err
		}
		if r.rows != nil {
			if err := c.emit(ctx, rec, bundle, manifest, store, corpus.RowsName(r.source.name), r.rows); err != nil {
				return err
			}
		}
		logging.DocumentEmitted(ctx, r.name, r.stats.Sentences, r.stats.UserEntities+r.stats.PredictedKept)
	}

	if bundle != nil {
		if err := bundle.WriteManifest(manifest); err != nil {
			bundle.Close()
			return err
		}
		if err := bundle.Close(); err != nil {
			return err
		}
	}
	logging.InfoContext(ctx, "combine_complete",
		"documents", stats.Documents,
		"paragraphs", stats.Paragraphs,
		"predicted_kept", stats.PredictedKept,
		"predicted_discarded", stats.PredictedDiscarded,
		"cross_sentence", stats.CrossSentence,
		"predict_failures", stats.PredictFailures,
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

// emit writes one output file to every configured destination and records
// its fingerprint. A bundle is closed when adding to it fails.
func (c *CombineCmd) emit(ctx context.Context, rec *recorder, bundle *archive.BundleWriter, manifest *archive.Manifest, store *cas.Store, name string, data []byte) error {
	if c.OutDir != "" {
		path := filepath.Join(c.OutDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return errors.NewIO("write", path, err)
		}
	}
	if bundle != nil {
		if err := bundle.AddWithManifest(manifest, name, data); err != nil {
			bundle.Close()
			return err
		}
	}
	if store != nil {
		if _, err := store.Put(data); err != nil {
			return err
		}
	}
	rec.document(ctx, name, cas.Sum(data))
	return nil
}

// combineSource combines every document of one ENAMEX file into a single
// output file. With a tokenizer it also renders the combined sentences as
// training rows.
func combineSource(ctx context.Context, combiner *corpus.Combiner, tok *tokenize.Tokenizer, s source) (res combined) {
	res.source = s
	res.name = corpus.CombinedName(s.name)

	rc, err := s.open()
	if err != nil {
		res.err = err
		return res
	}
	defer rc.Close()

	reader, err := corpus.NewEnamexReader(rc)
	if err != nil {
		res.err = err
		return res
	}
	var buf, rows bytes.Buffer
	writer := corpus.NewEnamexWriter(&buf)
	for {
		doc, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.err = err
			return res
		}
		out, paragraphs, stats := combiner.CombineDocument(ctx, doc)
		for _, p := range paragraphs {
			if p.PredictErr != nil {
				res.failures = append(res.failures, p.PredictErr)
			}
		}
		res.stats = res.stats.Merge(stats)
		if err := writer.WriteDocument(out); err != nil {
			res.err = err
			return res
		}
		if tok != nil {
			if err := corpus.WriteRows(&rows, out, tok); err != nil {
				res.err = err
				return res
			}
		}
	}
	if err := writer.Close(); err != nil {
		res.err = err
		return res
	}
	res.skipped = writer.Skipped
	res.output = buf.Bytes()
	if tok != nil {
		res.rows = rows.Bytes()
	}
	return res
}
