package main

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/nercorpus/internal/archive"
)

// BundleVerifyCmd checks a bundle against its manifest.
type BundleVerifyCmd struct {
	Path string `arg:"" help:"Bundle to verify (.tar.xz, .tar.gz or .tar)"`
}

func (c *BundleVerifyCmd) Run(g *Globals) error {
	m, err := archive.ReadManifest(c.Path)
	if err != nil {
		return err
	}
	bad, err := archive.VerifyBundle(c.Path)
	if err != nil {
		return err
	}
	if len(bad) > 0 {
		return fmt.Errorf("%s: %d of %d files failed verification: %s",
			c.Path, len(bad), len(m.Files), strings.Join(bad, ", "))
	}
	fmt.Fprintf(g.stdout, "%s: %d files verified (run %s)\n", c.Path, len(m.Files), m.RunID)
	return nil
}
