package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/mapping"
	"github.com/FocuswithJustin/nercorpus/core/span"
	"github.com/FocuswithJustin/nercorpus/core/tokenize"
	"github.com/FocuswithJustin/nercorpus/internal/archive"
)

// TokenizeCmd prints the tokens of a text.
type TokenizeCmd struct {
	File string `arg:"" optional:"" help:"Input file (default stdin)"`

	NoContractions bool     `name:"no-contractions" help:"Keep contractions as single tokens"`
	Offsets        bool     `help:"Print start and end byte offsets before each token"`
	Retokenize     bool     `help:"Treat input as whitespace separated tokens and only fuse split numbers"`
	Span           []string `help:"Byte span START:END; prints the indices of the tokens it touches" placeholder:"START:END"`
}

func (c *TokenizeCmd) Run(g *Globals) error {
	var in io.Reader = g.stdin
	if c.File != "" && c.File != "-" {
		rc, err := archive.Open(c.File)
		if err != nil {
			return err
		}
		defer rc.Close()
		in = rc
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return errors.NewIO("read", c.File, err)
	}

	out := bufio.NewWriter(g.stdout)
	defer out.Flush()

	if c.Retokenize {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			fmt.Fprintln(out, strings.Join(tokenize.Retokenize(fields), " "))
		}
		return nil
	}

	spans, err := parseSpans(c.Span)
	if err != nil {
		return err
	}
	opts := tokenize.DefaultOptions()
	opts.SplitContractions = !c.NoContractions
	tok, err := tokenize.New(opts)
	if err != nil {
		return err
	}
	tokens := tok.Tokenize(string(data))

	if len(spans) > 0 {
		indices := mapping.TokenIndices(tokens, spans)
		parts := make([]string, len(indices))
		for i, idx := range indices {
			parts[i] = strconv.Itoa(idx)
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return nil
	}

	for _, t := range tokens {
		if c.Offsets {
			fmt.Fprintf(out, "%d\t%d\t%s\n", t.Start, t.End, t.Text)
		} else {
			fmt.Fprintln(out, t.Text)
		}
	}
	return nil
}

// parseSpans reads "START:END" pairs.
func parseSpans(raw []string) ([]span.Span, error) {
	out := make([]span.Span, 0, len(raw))
	for _, r := range raw {
		start, end, ok := strings.Cut(r, ":")
		if !ok {
			return nil, errors.NewValidation("span", fmt.Sprintf("%q is not START:END", r))
		}
		s, err := strconv.Atoi(start)
		if err != nil {
			return nil, errors.NewValidation("span", fmt.Sprintf("bad start in %q", r))
		}
		e, err := strconv.Atoi(end)
		if err != nil {
			return nil, errors.NewValidation("span", fmt.Sprintf("bad end in %q", r))
		}
		out = append(out, span.New(s, e))
	}
	return out, nil
}
