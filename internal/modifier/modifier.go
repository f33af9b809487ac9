// Package modifier implements field transforms applied to decoded
// transactions before rule matching. Each directive rewrites one named
// field; directives run in declaration order and each op is a pure function
// of the current field value (plus, for subtract, another field's value).
package modifier

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/models"
)

// Op transforms one field value. lookup resolves other fields on the same
// transaction for ops that need them.
type Op interface {
	Name() string
	Apply(v models.Value, lookup func(string) (models.Value, bool)) (models.Value, error)
}

// Directive binds an op to the field it rewrites.
type Directive struct {
	Field string
	Op    Op
}

// Pipeline is an ordered list of directives. It is immutable after parsing
// and safe for concurrent use.
type Pipeline []Directive

// Apply runs every directive against the transaction in order. The first
// failing directive stops the pipeline and its error is reported for this
// transaction only.
func (p Pipeline) Apply(tx *models.Transaction) error {
	for _, d := range p {
		v, ok := tx.Field(d.Field)
		if !ok {
			return fmt.Errorf("%s: field %q not present", d.Op.Name(), d.Field)
		}
		out, err := d.Op.Apply(v, tx.Field)
		if err != nil {
			return fmt.Errorf("%s(%s): %w", d.Op.Name(), d.Field, err)
		}
		tx.SetField(d.Field, out)
	}
	return nil
}

// Abs replaces a number with its absolute value. Applying it twice equals
// applying it once.
type Abs struct{}

func (Abs) Name() string { return "abs" }

func (Abs) Apply(v models.Value, _ func(string) (models.Value, bool)) (models.Value, error) {
	if v.Kind != models.KindNumber {
		return models.Value{}, fmt.Errorf("requires a number field, got %s", v.Kind)
	}
	return models.NumberValue(v.Num.Abs()), nil
}

// Negate flips a number's sign. Applying it twice is the identity.
type Negate struct{}

func (Negate) Name() string { return "negate" }

func (Negate) Apply(v models.Value, _ func(string) (models.Value, bool)) (models.Value, error) {
	if v.Kind != models.KindNumber {
		return models.Value{}, fmt.Errorf("requires a number field, got %s", v.Kind)
	}
	return models.NumberValue(v.Num.Neg()), nil
}

// Subtract subtracts another field's current value. The other field must
// already be decoded on the transaction.
type Subtract struct {
	Other string
}

func (Subtract) Name() string { return "subtract" }

func (op Subtract) Apply(v models.Value, lookup func(string) (models.Value, bool)) (models.Value, error) {
	if v.Kind != models.KindNumber {
		return models.Value{}, fmt.Errorf("requires a number field, got %s", v.Kind)
	}
	other, ok := lookup(op.Other)
	if !ok {
		return models.Value{}, fmt.Errorf("field %q not present", op.Other)
	}
	if other.Kind != models.KindNumber {
		return models.Value{}, fmt.Errorf("field %q is not a number", op.Other)
	}
	return models.NumberValue(v.Num.Sub(other.Num)), nil
}

// Multiply scales a number by a constant factor.
type Multiply struct {
	Factor decimal.Decimal
}

func (Multiply) Name() string { return "multiply" }

func (op Multiply) Apply(v models.Value, _ func(string) (models.Value, bool)) (models.Value, error) {
	if v.Kind != models.KindNumber {
		return models.Value{}, fmt.Errorf("requires a number field, got %s", v.Kind)
	}
	return models.NumberValue(v.Num.Mul(op.Factor)), nil
}

// Round rounds a number to a fixed number of decimal places.
type Round struct {
	Places int32
}

func (Round) Name() string { return "round" }

func (op Round) Apply(v models.Value, _ func(string) (models.Value, bool)) (models.Value, error) {
	if v.Kind != models.KindNumber {
		return models.Value{}, fmt.Errorf("requires a number field, got %s", v.Kind)
	}
	return models.NumberValue(v.Num.Round(op.Places)), nil
}

// RegexReplace rewrites a string field with a compiled pattern, typically to
// strip payment-processor prefixes before matching.
type RegexReplace struct {
	Re   *regexp.Regexp
	Repl string
}

func (RegexReplace) Name() string { return "regex_replace" }

func (op RegexReplace) Apply(v models.Value, _ func(string) (models.Value, bool)) (models.Value, error) {
	if v.Kind != models.KindString {
		return models.Value{}, fmt.Errorf("requires a string field, got %s", v.Kind)
	}
	return models.StringValue(op.Re.ReplaceAllString(v.Str, op.Repl)), nil
}
