// Package format compiles user-specified line patterns into field extractors
// and decodes raw CSV lines against them.
//
// A pattern mixes literal text with placeholders:
//
//	{name}              capture with a type inferred from the name
//	{name:string}       explicitly typed capture (string, number, date)
//	{date:%m/%d/%Y}     date capture with a layout (strftime or Go reference)
//	{-amount} {+amount} number capture with sign normalization (negate, abs)
//	{_}                 positional skip, the column is consumed and discarded
//
// Names listed in Options.Captures become custom captures backed by an
// externally supplied regex instead of a built-in type.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/parsererror"
)

// TokenKind discriminates template tokens.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenCapture
	TokenCustom
	TokenSkip
)

// SignMode is the sign normalization applied to a number capture.
type SignMode int

const (
	SignKeep SignMode = iota
	SignNegate
	SignAbs
)

// Token is one element of a compiled template.
type Token struct {
	Kind TokenKind

	// Literal text, for TokenLiteral.
	Text string

	// Capture metadata, for TokenCapture/TokenCustom.
	Name       string
	Type       models.ValueKind
	DateLayout string
	Sign       SignMode

	// Compiled custom-capture pattern, anchored at the current position.
	Pattern *regexp.Regexp
}

// CustomPattern declares an externally supplied capture: a regex and the
// kind its captured text should be converted to (string when unspecified).
type CustomPattern struct {
	Pattern string
	Kind    models.ValueKind
}

// Options configures template compilation.
type Options struct {
	// DateLayout is the layout used by date captures that do not declare
	// their own. Accepts strftime or Go reference form. Defaults to ISO.
	DateLayout string

	// Captures maps custom capture names to their patterns.
	Captures map[string]CustomPattern
}

// Template is an immutable compiled format template. It is safe for
// concurrent use once compiled.
type Template struct {
	pattern string
	tokens  []Token
	fields  models.FieldTable
}

// Compile parses a pattern string into a Template.
func Compile(pattern string, opts Options) (*Template, error) {
	defaultLayout := TranslateLayout(opts.DateLayout)
	if defaultLayout == "" {
		defaultLayout = "2006-01-02"
	}

	t := &Template{
		pattern: pattern,
		fields:  make(models.FieldTable),
	}

	var literal strings.Builder
	flushLiteral := func() {
		if literal.Len() > 0 {
			t.tokens = append(t.tokens, Token{Kind: TokenLiteral, Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c != '{' {
			literal.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(pattern[i:], '}')
		if end < 0 {
			return nil, &parsererror.FormatSyntaxError{Pattern: pattern, Pos: i, Msg: "unterminated placeholder"}
		}
		body := pattern[i+1 : i+end]

		tok, err := compilePlaceholder(body, i, pattern, defaultLayout, opts.Captures)
		if err != nil {
			return nil, err
		}

		if tok.Kind != TokenSkip {
			if t.fields.Has(tok.Name) {
				return nil, &parsererror.FormatSyntaxError{
					Pattern: pattern, Pos: i,
					Msg: fmt.Sprintf("duplicate capture name %q", tok.Name),
				}
			}
			t.fields[tok.Name] = tok.Type
		}

		flushLiteral()
		t.tokens = append(t.tokens, tok)
		i += end + 1
	}
	flushLiteral()

	// A built-in capture has no delimiter of its own, so it needs a literal
	// (or end of line) after it to know where to stop.
	for i, tok := range t.tokens {
		if tok.Kind != TokenCapture && tok.Kind != TokenSkip {
			continue
		}
		if i+1 < len(t.tokens) && t.tokens[i+1].Kind != TokenLiteral {
			return nil, &parsererror.FormatSyntaxError{
				Pattern: pattern, Pos: 0,
				Msg: fmt.Sprintf("capture %q must be followed by literal text", tok.Name),
			}
		}
	}

	return t, nil
}

// compilePlaceholder parses the text between braces into a capture token.
func compilePlaceholder(body string, pos int, pattern, defaultLayout string, captures map[string]CustomPattern) (Token, error) {
	name := body
	spec := ""
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		name = body[:idx]
		spec = body[idx+1:]
	}

	sign := SignKeep
	switch {
	case strings.HasPrefix(name, "-"):
		sign = SignNegate
		name = name[1:]
	case strings.HasPrefix(name, "+"):
		sign = SignAbs
		name = name[1:]
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Token{}, &parsererror.FormatSyntaxError{Pattern: pattern, Pos: pos, Msg: "empty capture name"}
	}
	if name == "_" {
		return Token{Kind: TokenSkip, Name: "_"}, nil
	}

	if custom, ok := captures[name]; ok {
		re, err := regexp.Compile(`^(?:` + custom.Pattern + `)`)
		if err != nil {
			return Token{}, &parsererror.RegexCompileError{
				Pattern: custom.Pattern,
				Context: fmt.Sprintf("custom capture %q", name),
				Err:     err,
			}
		}
		return Token{Kind: TokenCustom, Name: name, Type: custom.Kind, Sign: sign, Pattern: re}, nil
	}

	kind, layout, err := resolveType(name, spec, defaultLayout)
	if err != nil {
		return Token{}, &parsererror.FormatSyntaxError{Pattern: pattern, Pos: pos, Msg: err.Error()}
	}
	if sign != SignKeep && kind != models.KindNumber {
		return Token{}, &parsererror.FormatSyntaxError{
			Pattern: pattern, Pos: pos,
			Msg: fmt.Sprintf("sign prefix on non-number capture %q", name),
		}
	}

	return Token{Kind: TokenCapture, Name: name, Type: kind, DateLayout: layout, Sign: sign}, nil
}

// resolveType determines a capture's kind and date layout from its name and
// the optional spec after the colon.
func resolveType(name, spec, defaultLayout string) (models.ValueKind, string, error) {
	switch spec {
	case "":
		// Infer from well-known names.
		switch name {
		case models.FieldDate:
			return models.KindDate, defaultLayout, nil
		case models.FieldAmount:
			return models.KindNumber, "", nil
		default:
			return models.KindString, "", nil
		}
	case "string":
		return models.KindString, "", nil
	case "number":
		return models.KindNumber, "", nil
	case "date":
		return models.KindDate, defaultLayout, nil
	}

	// Anything else is a date layout, strftime or Go reference form.
	if layout := TranslateLayout(spec); layout != "" && looksLikeDateLayout(layout) {
		return models.KindDate, layout, nil
	}
	return 0, "", fmt.Errorf("unknown type tag %q for capture %q", spec, name)
}

// Fields returns the capture table declared by this template.
func (t *Template) Fields() models.FieldTable {
	out := make(models.FieldTable, len(t.fields))
	for k, v := range t.fields {
		out[k] = v
	}
	return out
}

// Pattern returns the source pattern the template was compiled from.
func (t *Template) Pattern() string {
	return t.pattern
}

// Tokens returns the compiled token sequence.
func (t *Template) Tokens() []Token {
	return t.tokens
}
