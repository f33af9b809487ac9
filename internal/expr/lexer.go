// Package expr compiles boolean rule and view conditions into predicate
// trees evaluated against classified transactions.
//
// The grammar, in precedence order (lowest first):
//
//	expr     := or_expr
//	or_expr  := and_expr ("or" and_expr)*
//	and_expr := unary ("and" unary)*
//	unary    := "not" unary | primary
//	primary  := comparison | function | tag_test | "(" expr ")"
//
// Comparisons are typed by the referenced field; and/or short-circuit left
// to right. All regexes are compiled once, at expression compile time.
package expr

import (
	"strings"
	"unicode"

	"github.com/tallyhq/tally/internal/parsererror"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokRegex // /pattern/flags
	tokOp    // == != < <= > >= =~
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind  tokenKind
	text  string // identifier, operator, string/number content, regex pattern
	flags string // regex flags
	pos   int
}

type lexer struct {
	source string
	pos    int
}

func (l *lexer) errorf(pos int, msg string) error {
	return &parsererror.ExpressionSyntaxError{Source: l.source, Pos: pos, Msg: msg}
}

// next scans the next token. Keywords (and, or, not, in) come back as
// tokIdent; the parser gives them meaning.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.source) && unicode.IsSpace(rune(l.source[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.source) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.source[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, pos: start}, nil
	case c == '"' || c == '\'':
		return l.scanString(c)
	case c == '/':
		return l.scanRegex()
	case isIdentStart(c):
		for l.pos < len(l.source) && isIdentPart(l.source[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.source[start:l.pos], pos: start}, nil
	case c >= '0' && c <= '9' || c == '-' && l.pos+1 < len(l.source) && l.source[l.pos+1] >= '0' && l.source[l.pos+1] <= '9':
		l.pos++
		for l.pos < len(l.source) && (l.source[l.pos] >= '0' && l.source[l.pos] <= '9' || l.source[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.source[start:l.pos], pos: start}, nil
	}

	for _, op := range []string{"==", "!=", "<=", ">=", "=~", "<", ">"} {
		if strings.HasPrefix(l.source[l.pos:], op) {
			l.pos += len(op)
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}

	return token{}, l.errorf(start, "unexpected character "+string(c))
}

func (l *lexer) scanString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.source) {
		c := l.source[l.pos]
		if c == '\\' && l.pos+1 < len(l.source) {
			next := l.source[l.pos+1]
			if next == quote || next == '\\' {
				b.WriteByte(next)
				l.pos += 2
				continue
			}
			// Keep unknown escapes verbatim so regex() arguments survive.
			b.WriteByte(c)
			b.WriteByte(next)
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf(start, "unterminated string")
}

// scanRegex scans a /pattern/flags literal used with the =~ operator.
func (l *lexer) scanRegex() (token, error) {
	start := l.pos
	l.pos++ // opening slash
	var b strings.Builder
	for l.pos < len(l.source) {
		c := l.source[l.pos]
		if c == '\\' && l.pos+1 < len(l.source) {
			b.WriteByte(c)
			b.WriteByte(l.source[l.pos+1])
			l.pos += 2
			continue
		}
		if c == '/' {
			l.pos++
			flagStart := l.pos
			for l.pos < len(l.source) && isIdentPart(l.source[l.pos]) {
				l.pos++
			}
			return token{kind: tokRegex, text: b.String(), flags: l.source[flagStart:l.pos], pos: start}, nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf(start, "unterminated regex literal")
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
