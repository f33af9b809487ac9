package modifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/parsererror"
)

// directiveRe splits "field = op(args)" into its parts.
var directiveRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\((.*)\))?$`)

// ParseDirective parses one transform directive of the form
//
//	<field> = abs
//	<field> = negate
//	<field> = subtract(<field>)
//	<field> = multiply(<constant>)
//	<field> = round(<places>)
//	<field> = regex_replace("<pattern>", "<replacement>")
func ParseDirective(text string) (Directive, error) {
	m := directiveRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Directive{}, fmt.Errorf("invalid transform directive %q, expected 'field = op(args)'", text)
	}
	field, opName, rawArgs := m[1], strings.ToLower(m[2]), m[3]

	args, err := splitArgs(rawArgs)
	if err != nil {
		return Directive{}, fmt.Errorf("%s: %w", opName, err)
	}

	op, err := buildOp(opName, args)
	if err != nil {
		return Directive{}, err
	}
	return Directive{Field: field, Op: op}, nil
}

func buildOp(name string, args []string) (Op, error) {
	switch name {
	case "abs":
		if len(args) != 0 {
			return nil, fmt.Errorf("abs takes no arguments")
		}
		return Abs{}, nil

	case "negate":
		if len(args) != 0 {
			return nil, fmt.Errorf("negate takes no arguments")
		}
		return Negate{}, nil

	case "subtract":
		if len(args) != 1 {
			return nil, fmt.Errorf("subtract takes exactly one field argument")
		}
		return Subtract{Other: args[0]}, nil

	case "multiply":
		if len(args) != 1 {
			return nil, fmt.Errorf("multiply takes exactly one constant argument")
		}
		factor, err := decimal.NewFromString(args[0])
		if err != nil {
			return nil, fmt.Errorf("multiply: invalid constant %q", args[0])
		}
		return Multiply{Factor: factor}, nil

	case "round":
		if len(args) != 1 {
			return nil, fmt.Errorf("round takes exactly one places argument")
		}
		places, err := decimal.NewFromString(args[0])
		if err != nil || !places.IsInteger() {
			return nil, fmt.Errorf("round: invalid places %q", args[0])
		}
		return Round{Places: int32(places.IntPart())}, nil

	case "regex_replace":
		if len(args) != 2 {
			return nil, fmt.Errorf("regex_replace takes a pattern and a replacement")
		}
		re, err := regexp.Compile(args[0])
		if err != nil {
			return nil, &parsererror.RegexCompileError{Pattern: args[0], Context: "regex_replace transform", Err: err}
		}
		return RegexReplace{Re: re, Repl: args[1]}, nil
	}

	return nil, fmt.Errorf("unknown transform op %q", name)
}

// splitArgs splits an argument list on commas, honoring double quotes so
// patterns may contain commas. Quotes are stripped from quoted arguments.
func splitArgs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var args []string
	var b strings.Builder
	inQuote := false
	escaped := false

	flush := func() {
		args = append(args, strings.TrimSpace(b.String()))
		b.Reset()
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			if c != '"' && c != '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			flush()
		default:
			b.WriteByte(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in arguments %q", raw)
	}
	flush()
	return args, nil
}
