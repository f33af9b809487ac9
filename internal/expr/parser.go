package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/parsererror"
)

// Options configures expression compilation.
type Options struct {
	// Fields is the statically known field table (base fields plus the
	// custom captures declared by the templates in scope). References to
	// names outside it are rejected at compile time.
	Fields models.FieldTable

	// DateLayout is used for date literals in comparisons, in addition to
	// ISO (2006-01-02) which is always accepted.
	DateLayout string
}

// Compile parses a boolean condition into a predicate tree.
func Compile(source string, opts Options) (Node, error) {
	if opts.Fields == nil {
		opts.Fields = models.BaseFieldTable()
	}

	p := &parser{source: source, opts: opts}
	if err := p.scan(); err != nil {
		return nil, err
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, p.errorf(p.cur().pos, "unexpected trailing input")
	}
	return node, nil
}

type parser struct {
	source string
	opts   Options
	tokens []token
	idx    int
}

func (p *parser) scan() error {
	l := &lexer{source: p.source}
	for {
		tok, err := l.next()
		if err != nil {
			return err
		}
		p.tokens = append(p.tokens, tok)
		if tok.kind == tokEOF {
			return nil
		}
	}
}

func (p *parser) cur() token  { return p.tokens[p.idx] }
func (p *parser) peek() token {
	if p.idx+1 < len(p.tokens) {
		return p.tokens[p.idx+1]
	}
	return p.tokens[len(p.tokens)-1]
}
func (p *parser) advance() token {
	tok := p.tokens[p.idx]
	if p.idx < len(p.tokens)-1 {
		p.idx++
	}
	return tok
}

func (p *parser) errorf(pos int, format string, args ...interface{}) error {
	return &parsererror.ExpressionSyntaxError{Source: p.source, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func isKeyword(tok token, kw string) bool {
	return tok.kind == tokIdent && strings.EqualFold(tok.text, kw)
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	kids := []Node{left}
	for isKeyword(p.cur(), "or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		kids = append(kids, right)
	}
	if len(kids) == 1 {
		return left, nil
	}
	return &Or{Kids: kids}, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	kids := []Node{left}
	for isKeyword(p.cur(), "and") {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		kids = append(kids, right)
	}
	if len(kids) == 1 {
		return left, nil
	}
	return &And{Kids: kids}, nil
}

func (p *parser) parseUnary() (Node, error) {
	if isKeyword(p.cur(), "not") {
		p.advance()
		kid, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Kid: kid}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.cur()

	switch tok.kind {
	case tokLParen:
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, p.errorf(p.cur().pos, "expected ')'")
		}
		p.advance()
		return node, nil

	case tokString:
		// "tag" in tags
		lit := p.advance()
		if !isKeyword(p.cur(), "in") {
			return nil, p.errorf(p.cur().pos, "expected 'in' after string literal")
		}
		p.advance()
		if !isKeyword(p.cur(), "tags") {
			return nil, p.errorf(p.cur().pos, "membership test is only supported against 'tags'")
		}
		p.advance()
		return &TagCheck{Tag: lit.text}, nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseFunction()
		}
		return p.parseComparison()
	}

	return nil, p.errorf(tok.pos, "expected a condition")
}

// parseFunction handles the text predicates: contains, startswith,
// normalized, anyof, regex, fuzzy. They all operate on the description field.
func (p *parser) parseFunction() (Node, error) {
	name := p.advance()
	if strings.EqualFold(name.text, "fuzzy") {
		return p.parseFuzzy(name)
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, p.errorf(name.pos, "%s() requires at least one argument", name.text)
	}

	switch strings.ToLower(name.text) {
	case "contains", "anyof":
		return &TextMatch{Field: models.FieldDescription, Mode: ModeContains, Needles: upperAll(args)}, nil
	case "startswith":
		return &TextMatch{Field: models.FieldDescription, Mode: ModeStartsWith, Needles: upperAll(args)}, nil
	case "normalized":
		needles := make([]string, len(args))
		for i, a := range args {
			needles[i] = normalizeText(a)
		}
		return &TextMatch{Field: models.FieldDescription, Mode: ModeNormalized, Needles: needles}, nil
	case "regex":
		if len(args) != 1 {
			return nil, p.errorf(name.pos, "regex() takes exactly one argument")
		}
		re, err := regexp.Compile(args[0])
		if err != nil {
			return nil, &parsererror.RegexCompileError{Pattern: args[0], Context: "regex() predicate", Err: err}
		}
		return &Match{Field: models.FieldDescription, Re: re}, nil
	}
	return nil, p.errorf(name.pos, "unknown function %q", name.text)
}

// defaultFuzzyThreshold is the similarity ratio fuzzy("X") requires when the
// rule does not pass its own.
const defaultFuzzyThreshold = 0.80

// parseFuzzy handles fuzzy("needle") and fuzzy("needle", 0.85). The optional
// second argument overrides the similarity threshold and must sit in (0, 1].
func (p *parser) parseFuzzy(name token) (Node, error) {
	if p.cur().kind != tokLParen {
		return nil, p.errorf(p.cur().pos, "expected '(' after %s", name.text)
	}
	p.advance()

	needle := p.cur()
	if needle.kind != tokString {
		return nil, p.errorf(needle.pos, "fuzzy() requires a quoted string argument")
	}
	p.advance()

	threshold := defaultFuzzyThreshold
	if p.cur().kind == tokComma {
		p.advance()
		lit := p.cur()
		if lit.kind != tokNumber {
			return nil, p.errorf(lit.pos, "fuzzy() threshold must be a number")
		}
		p.advance()
		parsed, err := strconv.ParseFloat(lit.text, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			return nil, p.errorf(lit.pos, "fuzzy() threshold %q must be in (0, 1]", lit.text)
		}
		threshold = parsed
	}

	if p.cur().kind != tokRParen {
		return nil, p.errorf(p.cur().pos, "expected ')'")
	}
	p.advance()

	return &Fuzzy{
		Field:     models.FieldDescription,
		Needle:    strings.ToUpper(needle.text),
		Threshold: threshold,
	}, nil
}

func (p *parser) parseArgs() ([]string, error) {
	p.advance() // '('
	var args []string
	for {
		tok := p.cur()
		if tok.kind == tokRParen {
			p.advance()
			return args, nil
		}
		if tok.kind != tokString {
			return nil, p.errorf(tok.pos, "function arguments must be quoted strings")
		}
		args = append(args, p.advance().text)
		if p.cur().kind == tokComma {
			p.advance()
		}
	}
}

// parseComparison handles `field <op> literal` and `field =~ /regex/`.
func (p *parser) parseComparison() (Node, error) {
	field := p.advance()
	kind, known := p.opts.Fields[field.text]
	if !known {
		return nil, p.errorf(field.pos, "unknown field %q", field.text)
	}

	op := p.cur()
	if op.kind != tokOp {
		return nil, p.errorf(op.pos, "expected comparison operator after field %q", field.text)
	}
	p.advance()

	if op.text == "=~" {
		lit := p.cur()
		if lit.kind != tokRegex {
			return nil, p.errorf(lit.pos, "=~ requires a /regex/ literal")
		}
		p.advance()
		pat := lit.text
		if strings.Contains(lit.flags, "i") {
			pat = "(?i)" + pat
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, &parsererror.RegexCompileError{Pattern: lit.text, Context: "=~ predicate", Err: err}
		}
		return &Match{Field: field.text, Re: re}, nil
	}

	lit, err := p.parseLiteral(kind)
	if err != nil {
		return nil, err
	}
	return &Compare{Field: field.text, Kind: kind, Op: op.text, Lit: lit}, nil
}

// parseLiteral reads a comparison operand typed by the field's kind.
func (p *parser) parseLiteral(kind models.ValueKind) (models.Value, error) {
	tok := p.cur()

	switch kind {
	case models.KindNumber:
		if tok.kind != tokNumber {
			return models.Value{}, p.errorf(tok.pos, "number field requires a numeric literal")
		}
		p.advance()
		num, err := decimal.NewFromString(tok.text)
		if err != nil {
			return models.Value{}, p.errorf(tok.pos, "invalid number %q", tok.text)
		}
		return models.NumberValue(num), nil

	case models.KindDate:
		if tok.kind != tokString {
			return models.Value{}, p.errorf(tok.pos, "date field requires a quoted date literal")
		}
		p.advance()
		d, err := p.parseDate(tok.text)
		if err != nil {
			return models.Value{}, p.errorf(tok.pos, "invalid date %q", tok.text)
		}
		return models.DateValue(d), nil

	default:
		if tok.kind != tokString {
			return models.Value{}, p.errorf(tok.pos, "string field requires a quoted literal")
		}
		p.advance()
		return models.StringValue(tok.text), nil
	}
}

func (p *parser) parseDate(s string) (time.Time, error) {
	layouts := []string{"2006-01-02"}
	if p.opts.DateLayout != "" {
		layouts = append(layouts, p.opts.DateLayout)
	}
	var firstErr error
	for _, layout := range layouts {
		d, err := time.Parse(layout, s)
		if err == nil {
			return d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
