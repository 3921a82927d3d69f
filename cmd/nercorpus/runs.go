package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/scoring"
	"github.com/FocuswithJustin/nercorpus/internal/registry"
)

// RunsListCmd lists recorded runs.
type RunsListCmd struct {
	Limit int  `short:"n" default:"20" help:"Maximum runs to list (0 = all)"`
	JSON  bool `help:"Print runs as JSON"`
}

func (c *RunsListCmd) Run(g *Globals) error {
	reg, err := g.requireRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	runs, err := reg.ListRuns(g.ctx, c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(g, runs)
	}
	for _, r := range runs {
		fmt.Fprintf(g.stdout, "%s  %-8s  %-7s  %s  %s\n",
			r.ID, r.Kind, r.Status, r.StartedAt.Format(time.RFC3339), formatDuration(r))
	}
	return nil
}

// RunsShowCmd shows a single run.
type RunsShowCmd struct {
	ID   string `arg:"" help:"Run ID"`
	JSON bool   `help:"Print the run as JSON"`
}

type runDetail struct {
	registry.Run
	Drops       []registry.Drop       `json:"drops"`
	Documents   []registry.Document   `json:"documents"`
	Evaluations []registry.Evaluation `json:"evaluations"`
}

func (c *RunsShowCmd) Run(g *Globals) error {
	reg, err := g.requireRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	var d runDetail
	if d.Run, err = reg.GetRun(g.ctx, c.ID); err != nil {
		return err
	}
	if d.Drops, err = reg.Drops(g.ctx, c.ID); err != nil {
		return err
	}
	if d.Documents, err = reg.Documents(g.ctx, c.ID); err != nil {
		return err
	}
	if d.Evaluations, err = reg.Evaluations(g.ctx, c.ID); err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(g, d)
	}

	w := g.stdout
	fmt.Fprintf(w, "Run:      %s\n", d.ID)
	fmt.Fprintf(w, "Kind:     %s\n", d.Kind)
	fmt.Fprintf(w, "Args:     %s\n", d.Args)
	fmt.Fprintf(w, "Status:   %s\n", d.Status)
	fmt.Fprintf(w, "Started:  %s\n", d.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(d.Run))
	if d.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", d.Error)
	}
	if len(d.Stats) > 0 {
		fmt.Fprintf(w, "Stats:    %s\n", d.Stats)
	}
	if len(d.Documents) > 0 {
		fmt.Fprintf(w, "\nDocuments (%d):\n", len(d.Documents))
		for _, doc := range d.Documents {
			fmt.Fprintf(w, "  %s  %s  %d bytes\n", doc.Fingerprint.SHA256[:12], doc.Name, doc.Fingerprint.Size)
		}
	}
	if len(d.Drops) > 0 {
		fmt.Fprintf(w, "\nDropped units (%d):\n", len(d.Drops))
		for _, drop := range d.Drops {
			fmt.Fprintf(w, "  %s: %s\n", drop.Source, drop.AlignmentError.Error())
		}
	}
	for _, ev := range d.Evaluations {
		c := ev.Counters
		fmt.Fprintf(w, "\nEvaluation %s: tokens=%d tp=%d fp=%d tn=%d fn=%d precision=%s recall=%s f1=%s\n",
			ev.Source, ev.Tokens, c.TruePositive, c.FalsePositive, c.TrueNegative, c.FalseNegative,
			scoring.Percent(c.Precision()), scoring.Percent(c.Recall()), scoring.Percent(c.F1()))
	}
	return nil
}

func (g *Globals) requireRegistry() (*registry.Registry, error) {
	reg, err := g.openRegistry()
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errors.NewValidation("registry", "no registry configured (use --registry or NERCORPUS_REGISTRY)")
	}
	return reg, nil
}

func formatDuration(r registry.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}

func writeJSON(g *Globals, v any) error {
	enc := json.NewEncoder(g.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
