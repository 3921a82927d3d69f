package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/internal/classifier"
)

type tagger interface {
	Tag(ctx context.Context, tokens []string) ([]classifier.Tagged, error)
}

// tagRows appends the tagger's label to every row of r, one sentence per
// request. Rows carry the token first and the expected label last. Rows
// with fewer than two fields are copied unchanged so scoring reports them.
// A failed sentence is passed to onErr and labelled Outside throughout.
func tagRows(ctx context.Context, t tagger, r io.Reader, sep string, onErr func(error)) (*bytes.Buffer, error) {
	if sep == "" {
		sep = "\t"
	}
	var out bytes.Buffer
	var sentence []string

	flush := func() error {
		if len(sentence) == 0 {
			return nil
		}
		var tokens []string
		for _, line := range sentence {
			if fields := strings.Split(line, sep); len(fields) >= 2 {
				tokens = append(tokens, strings.TrimSpace(fields[0]))
			}
		}
		tagged, err := t.Tag(ctx, tokens)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			onErr(err)
			tagged = nil
		}
		k := 0
		for _, line := range sentence {
			out.WriteString(line)
			if len(strings.Split(line, sep)) >= 2 {
				label := ner.Outside
				if k < len(tagged) {
					label = tagged[k].Label
				}
				k++
				out.WriteString(sep)
				out.WriteString(label)
			}
			out.WriteByte('\n')
		}
		sentence = sentence[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			out.WriteByte('\n')
			continue
		}
		sentence = append(sentence, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", "evaluation rows", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return &out, nil
}
