package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the typed field values a transaction can carry.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindDate
)

// String returns the kind name as used in format templates and error messages.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// Value is a tagged variant over the three field types. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Str  string
	Num  decimal.Decimal
	Date time.Time
}

// StringValue creates a string-typed value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NumberValue creates a number-typed value.
func NumberValue(d decimal.Decimal) Value {
	return Value{Kind: KindNumber, Num: d}
}

// IntValue creates a number-typed value from an int.
func IntValue(i int) Value {
	return Value{Kind: KindNumber, Num: decimal.NewFromInt(int64(i))}
}

// DateValue creates a date-typed value.
func DateValue(t time.Time) Value {
	return Value{Kind: KindDate, Date: t}
}

// String renders the value for output and diagnostics. Dates use ISO layout.
// Numbers render at the decimal's own scale, so a captured "4.50" stays
// "4.50" through an encode round-trip instead of collapsing to "4.5".
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		if exp := v.Num.Exponent(); exp < 0 {
			return v.Num.StringFixed(-exp)
		}
		return v.Num.String()
	case KindDate:
		return v.Date.Format("2006-01-02")
	default:
		return v.Str
	}
}

// Format renders the value using the given date layout; non-date values
// ignore the layout.
func (v Value) Format(dateLayout string) string {
	if v.Kind == KindDate && dateLayout != "" {
		return v.Date.Format(dateLayout)
	}
	return v.String()
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num.Equal(other.Num)
	case KindDate:
		return v.Date.Equal(other.Date)
	default:
		return v.Str == other.Str
	}
}

// FieldMap holds the named values decoded from one input line.
type FieldMap map[string]Value

// Clone returns a shallow copy of the map.
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FieldTable is the statically known set of field names and their kinds,
// built from the active template plus derived date components. Expression
// compilation resolves field references against it.
type FieldTable map[string]ValueKind

// Has reports whether the table declares the field.
func (t FieldTable) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// Merge returns a new table containing both tables' fields. A duplicate name
// with conflicting kinds is an error.
func (t FieldTable) Merge(other FieldTable) (FieldTable, error) {
	out := make(FieldTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		if existing, ok := out[k]; ok && existing != v {
			return nil, fmt.Errorf("field %q declared as both %s and %s", k, existing, v)
		}
		out[k] = v
	}
	return out, nil
}
