package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/models"
)

// ShapeError reports a line whose shape does not match the compiled
// template. It is a per-line condition: callers record it and continue.
type ShapeError struct {
	Pos int
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("line does not match template at offset %d: %s", e.Pos, e.Msg)
}

// Decode extracts the template's captures from one raw line. The line must
// be fully consumed; leftover text or a missing literal is a *ShapeError.
func (t *Template) Decode(line string) (models.FieldMap, error) {
	fields := make(models.FieldMap, len(t.fields))
	pos := 0

	for i, tok := range t.tokens {
		switch tok.Kind {
		case TokenLiteral:
			if !strings.HasPrefix(line[pos:], tok.Text) {
				return nil, &ShapeError{Pos: pos, Msg: fmt.Sprintf("expected literal %q", tok.Text)}
			}
			pos += len(tok.Text)

		case TokenCustom:
			loc := tok.Pattern.FindStringIndex(line[pos:])
			if loc == nil {
				return nil, &ShapeError{Pos: pos, Msg: fmt.Sprintf("custom capture %q did not match", tok.Name)}
			}
			raw := line[pos : pos+loc[1]]
			v, err := convertCapture(tok, raw)
			if err != nil {
				return nil, &ShapeError{Pos: pos, Msg: err.Error()}
			}
			fields[tok.Name] = v
			pos += loc[1]

		case TokenCapture, TokenSkip:
			// Consume up to the next literal, or the rest of the line.
			segEnd := len(line)
			if i+1 < len(t.tokens) {
				next := t.tokens[i+1]
				idx := strings.Index(line[pos:], next.Text)
				if idx < 0 {
					return nil, &ShapeError{Pos: pos, Msg: fmt.Sprintf("expected literal %q after capture %q", next.Text, tok.Name)}
				}
				segEnd = pos + idx
			}
			raw := line[pos:segEnd]
			if tok.Kind == TokenCapture {
				v, err := convertCapture(tok, raw)
				if err != nil {
					return nil, &ShapeError{Pos: pos, Msg: err.Error()}
				}
				fields[tok.Name] = v
			}
			pos = segEnd
		}
	}

	if pos != len(line) {
		return nil, &ShapeError{Pos: pos, Msg: "trailing text after template"}
	}
	return fields, nil
}

// Encode is the inverse of Decode: it renders a field map back into a line.
// Skip captures encode as empty columns; captured whitespace padding is not
// restored, so round-trips normalize padding away.
func (t *Template) Encode(fields models.FieldMap) (string, error) {
	var b strings.Builder
	for _, tok := range t.tokens {
		switch tok.Kind {
		case TokenLiteral:
			b.WriteString(tok.Text)
		case TokenSkip:
			// Nothing to restore.
		default:
			v, ok := fields[tok.Name]
			if !ok {
				return "", fmt.Errorf("missing field %q", tok.Name)
			}
			b.WriteString(v.Format(tok.DateLayout))
		}
	}
	return b.String(), nil
}

// convertCapture turns captured text into a typed value, applying the
// token's sign normalization to numbers.
func convertCapture(tok Token, raw string) (models.Value, error) {
	raw = strings.TrimSpace(raw)

	switch tok.Type {
	case models.KindNumber:
		num, err := parseAmount(raw)
		if err != nil {
			return models.Value{}, fmt.Errorf("capture %q: %v", tok.Name, err)
		}
		switch tok.Sign {
		case SignNegate:
			num = num.Neg()
		case SignAbs:
			num = num.Abs()
		}
		return models.NumberValue(num), nil

	case models.KindDate:
		layout := tok.DateLayout
		if layout == "" {
			layout = "2006-01-02"
		}
		d, err := time.Parse(layout, raw)
		if err != nil {
			return models.Value{}, fmt.Errorf("capture %q: cannot parse date %q with layout %q", tok.Name, raw, layout)
		}
		return models.DateValue(d), nil

	default:
		return models.StringValue(raw), nil
	}
}

// parseAmount parses a monetary string, tolerating currency symbols,
// thousands separators, and accounting-style parentheses for negatives.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '¥', ',', ' ', '\'':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	num, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", raw)
	}
	return num, nil
}
