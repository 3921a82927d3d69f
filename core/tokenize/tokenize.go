// Package tokenize turns raw text into offset-carrying tokens using the
// delimiter convention of the annotation sources: whitespace and a
// configured punctuation set split the text, and every delimiter is
// emitted as a token of its own.
package tokenize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/nercorpus/core/span"
)

// DefaultPunctuation is the punctuation set used when Options leaves it empty.
const DefaultPunctuation = "(（[•*,:;?.!/)）-−–‐«»„\"“”‘’'`$#@]*♦♥♣♠"

// contraction is split off the preceding word, "don't" -> "do", "n't".
const contraction = "n't"

// Token is a piece of raw text with its byte offsets.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Span returns the token extent.
func (t Token) Span() span.Span {
	return span.New(t.Start, t.End)
}

// IsSpace reports whether the token holds whitespace only.
func (t Token) IsSpace() bool {
	return isSpace(t.Text)
}

// Options configures a Tokenizer.
type Options struct {
	// Punctuation lists the characters emitted as standalone tokens.
	// Whitespace always delimits. Empty means DefaultPunctuation.
	Punctuation string

	// SplitContractions separates a trailing "n't" from its word.
	SplitContractions bool
}

// DefaultOptions returns the options matching the SemDoc convention.
func DefaultOptions() Options {
	return Options{Punctuation: DefaultPunctuation, SplitContractions: true}
}

// Tokenizer is safe for concurrent use; it holds no per-call state.
type Tokenizer struct {
	opts Options
	def  *lexer.StatefulDefinition
}

// New builds a tokenizer whose lexer rules are generated from the
// configured punctuation set.
func New(opts Options) (*Tokenizer, error) {
	if opts.Punctuation == "" {
		opts.Punctuation = DefaultPunctuation
	}
	class := runeClass(opts.Punctuation)
	rules := []lexer.SimpleRule{{Name: "Space", Pattern: `[\s\p{Zs}]`}}
	if class != "" {
		rules = append(rules, lexer.SimpleRule{Name: "Punct", Pattern: `[` + class + `]`})
	}
	rules = append(rules, lexer.SimpleRule{Name: "Word", Pattern: `[^\s\p{Zs}` + class + `]+`})

	def, err := lexer.NewSimple(rules)
	if err != nil {
		return nil, fmt.Errorf("building lexer: %w", err)
	}
	return &Tokenizer{opts: opts, def: def}, nil
}

// MustNew is New for fixed option sets.
func MustNew(opts Options) *Tokenizer {
	t, err := New(opts)
	if err != nil {
		panic(err)
	}
	return t
}

// Options returns the configuration the tokenizer was built with.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Tokenize splits raw, fuses grouped numbers and drops whitespace tokens.
// Empty input yields an empty slice.
func (t *Tokenizer) Tokenize(raw string) []Token {
	all := t.TokenizeAll(raw)
	out := make([]Token, 0, len(all))
	for _, tok := range all {
		if !tok.IsSpace() {
			out = append(out, tok)
		}
	}
	return out
}

// TokenizeAll is Tokenize without the whitespace filter. Concatenating the
// token texts reproduces raw.
func (t *Tokenizer) TokenizeAll(raw string) []Token {
	if raw == "" {
		return []Token{}
	}
	return RetokenizeTokens(t.split(raw))
}

// split runs the lexer. Input the lexer rejects is emitted one character
// per token so tokenization never fails.
func (t *Tokenizer) split(raw string) []Token {
	var out []Token
	pos := 0
	lex, err := t.def.LexString("", raw)
	if err == nil {
		for {
			tok, err := lex.Next()
			if err != nil || tok.EOF() {
				break
			}
			start := tok.Pos.Offset
			end := start + len(tok.Value)
			out = append(out, Token{Text: tok.Value, Start: start, End: end})
			pos = end
		}
	}
	for pos < len(raw) {
		_, size := utf8.DecodeRuneInString(raw[pos:])
		out = append(out, Token{Text: raw[pos : pos+size], Start: pos, End: pos + size})
		pos += size
	}
	if t.opts.SplitContractions {
		out = splitContractions(out)
	}
	return out
}

// splitContractions rewrites "do", "n", "'", "t" style runs, and words
// ending in "n't" when the apostrophe is not a delimiter, so that the
// contraction forms a token of its own.
func splitContractions(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if i+2 < len(tokens) && strings.HasSuffix(tok.Text, "n") &&
			tokens[i+1].Text == "'" && tokens[i+2].Text == "t" &&
			tok.End == tokens[i+1].Start && tokens[i+1].End == tokens[i+2].Start {
			cut := tok.End - 1
			if cut > tok.Start {
				out = append(out, Token{Text: tok.Text[:len(tok.Text)-1], Start: tok.Start, End: cut})
			}
			out = append(out, Token{Text: contraction, Start: cut, End: tokens[i+2].End})
			i += 2
			continue
		}
		if len(tok.Text) > len(contraction) && strings.HasSuffix(tok.Text, contraction) {
			cut := tok.End - len(contraction)
			out = append(out,
				Token{Text: tok.Text[:len(tok.Text)-len(contraction)], Start: tok.Start, End: cut},
				Token{Text: contraction, Start: cut, End: tok.End},
			)
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Texts returns the token texts.
func Texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}

// Retokenize fuses digit groups split by a generic tokenizer:
// "10", ",", "000" -> "10,000". It is idempotent.
func Retokenize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		for isNumeric(tokens[i]) && fusable(tokens, i) {
			token += tokens[i+1] + tokens[i+2]
			i += 2
		}
		out = append(out, token)
	}
	return out
}

// RetokenizeTokens is Retokenize over offset-carrying tokens. A fused
// token spans from the first fragment's start to the last one's end.
func RetokenizeTokens(tokens []Token) []Token {
	texts := Texts(tokens)
	out := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		for isNumeric(texts[i]) && fusable(texts, i) {
			tok.Text += texts[i+1] + texts[i+2]
			tok.End = tokens[i+2].End
			i += 2
		}
		out = append(out, tok)
	}
	return out
}

// fusable reports whether tokens[i+1] is a group separator followed by
// another digit group.
func fusable(tokens []string, i int) bool {
	if i+2 >= len(tokens) {
		return false
	}
	sep := tokens[i+1]
	return (sep == "," || sep == ".") && isNumeric(tokens[i+2])
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isSpace(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// runeClass escapes every rune for use inside a regexp character class.
func runeClass(chars string) string {
	var b strings.Builder
	seen := make(map[rune]bool)
	for _, r := range chars {
		if seen[r] || unicode.IsSpace(r) {
			continue
		}
		seen[r] = true
		fmt.Fprintf(&b, `\x{%04X}`, r)
	}
	return b.String()
}
