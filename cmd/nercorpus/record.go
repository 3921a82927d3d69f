package main

import (
	"context"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/cas"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/scoring"
	"github.com/FocuswithJustin/nercorpus/internal/logging"
	"github.com/FocuswithJustin/nercorpus/internal/registry"
)

// recorder writes run records when a registry is configured. Every method
// is a no-op on a recorder without one. Registry failures are logged and
// never fail the command.
type recorder struct {
	reg *registry.Registry
	run registry.Run
}

func (g *Globals) openRegistry() (*registry.Registry, error) {
	if g.Registry == "" {
		return nil, nil
	}
	return registry.Open(g.ctx, g.Registry)
}

// startRun opens the registry and records the start of a run. The
// returned context carries the run ID for log lines.
func (g *Globals) startRun(kind string, args []string) (*recorder, context.Context, error) {
	reg, err := g.openRegistry()
	if err != nil {
		return nil, g.ctx, err
	}
	rec := &recorder{reg: reg}
	if reg == nil {
		return rec, g.ctx, nil
	}
	rec.run, err = reg.StartRun(g.ctx, kind, strings.Join(args, " "))
	if err != nil {
		reg.Close()
		return nil, g.ctx, err
	}
	return rec, logging.WithRunID(g.ctx, rec.run.ID), nil
}

func (r *recorder) drops(ctx context.Context, source string, drops []*errors.AlignmentError) {
	if r.reg == nil {
		return
	}
	if err := r.reg.RecordDrops(ctx, r.run.ID, source, drops); err != nil {
		logging.WarnContext(ctx, "registry_write_failed", "what", "drops", "error", err.Error())
	}
}

func (r *recorder) document(ctx context.Context, name string, fp cas.Fingerprint) {
	if r.reg == nil {
		return
	}
	if err := r.reg.RecordDocument(ctx, r.run.ID, name, fp); err != nil {
		logging.WarnContext(ctx, "registry_write_failed", "what", "document", "error", err.Error())
	}
}

func (r *recorder) evaluation(ctx context.Context, source string, ev scoring.Evaluation) {
	if r.reg == nil {
		return
	}
	if err := r.reg.RecordEvaluation(ctx, r.run.ID, source, ev); err != nil {
		logging.WarnContext(ctx, "registry_write_failed", "what", "evaluation", "error", err.Error())
	}
}

// finish closes the run with stats and the command's error, then closes
// the registry.
func (r *recorder) finish(ctx context.Context, stats any, runErr error) {
	if r.reg == nil {
		return
	}
	if err := r.reg.FinishRun(ctx, r.run.ID, stats, runErr); err != nil {
		logging.WarnContext(ctx, "registry_write_failed", "what", "run", "error", err.Error())
	}
	r.reg.Close()
}
