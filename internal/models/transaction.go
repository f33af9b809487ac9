package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether money left or entered the account.
type Direction string

const (
	DirectionOutflow Direction = "outflow"
	DirectionInflow  Direction = "inflow"
)

// TagSet is a case-insensitive set of tags. Insertion order is irrelevant.
type TagSet map[string]struct{}

// NewTagSet creates a set from the given tags.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts a tag, normalized to lowercase. Empty tags are ignored.
func (s TagSet) Add(tag string) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return
	}
	s[tag] = struct{}{}
}

// AddAll inserts every tag from another set.
func (s TagSet) AddAll(other TagSet) {
	for tag := range other {
		s[tag] = struct{}{}
	}
}

// Has reports whether the set contains the tag (case-insensitive).
func (s TagSet) Has(tag string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}

// Sorted returns the tags in alphabetical order for deterministic output.
func (s TagSet) Sorted() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MatchInfo records which rule classified a transaction.
type MatchInfo struct {
	RuleName  string
	RuleOrder int
	Matched   bool
}

// Transaction is one classified financial event. It is built up by the
// pipeline stages (decode, modify, match, view-bucket) and treated as
// read-only once classification completes.
//
// Sign convention: a positive amount is an outflow (expense), a negative
// amount an inflow (refund or credit), unless a modifier rewrote the sign.
type Transaction struct {
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Description string
	Merchant    string
	Category    string
	Subcategory string
	Tags        TagSet

	// Source identifies the data source the line came from; Line is the
	// 1-based line number within it.
	Source string
	Line   int

	// Extra holds custom-capture fields not covered by the static ones.
	Extra FieldMap

	Match MatchInfo
}

// NewTransaction creates a draft transaction from a decoded field map.
// Static fields are lifted out of the map; everything else lands in Extra.
func NewTransaction(source string, line int, fields FieldMap) Transaction {
	tx := Transaction{
		Tags:   NewTagSet(),
		Source: source,
		Line:   line,
		Extra:  make(FieldMap),
	}
	for name, v := range fields {
		switch name {
		case FieldDate:
			tx.Date = v.Date
		case FieldAmount:
			tx.Amount = v.Num
		case FieldDescription:
			tx.Description = v.Str
		case FieldMerchant:
			tx.Merchant = v.Str
		default:
			tx.Extra[name] = v
		}
	}
	return tx
}

// Direction derives the flow direction from the amount sign.
func (t *Transaction) Direction() Direction {
	if t.Amount.IsNegative() {
		return DirectionInflow
	}
	return DirectionOutflow
}

// Field resolves a field name to its current typed value. It covers the
// static fields, the derived date components, and custom captures.
func (t *Transaction) Field(name string) (Value, bool) {
	switch name {
	case FieldDate:
		return DateValue(t.Date), true
	case FieldAmount:
		return NumberValue(t.Amount), true
	case FieldDescription:
		return StringValue(t.Description), true
	case FieldMerchant:
		return StringValue(t.Merchant), true
	case FieldCategory:
		return StringValue(t.Category), true
	case FieldSubcategory:
		return StringValue(t.Subcategory), true
	case FieldMonth:
		return IntValue(int(t.Date.Month())), true
	case FieldYear:
		return IntValue(t.Date.Year()), true
	case FieldDay:
		return IntValue(t.Date.Day()), true
	case FieldWeekday:
		return IntValue(mondayWeekday(t.Date)), true
	}
	v, ok := t.Extra[name]
	return v, ok
}

// SetField writes a field value back after a modifier ran. Unknown names go
// to Extra so custom captures stay writable.
func (t *Transaction) SetField(name string, v Value) {
	switch name {
	case FieldDate:
		t.Date = v.Date
	case FieldAmount:
		t.Amount = v.Num
	case FieldDescription:
		t.Description = v.Str
	case FieldMerchant:
		t.Merchant = v.Str
	case FieldCategory:
		t.Category = v.Str
	case FieldSubcategory:
		t.Subcategory = v.Str
	default:
		t.Extra[name] = v
	}
}

// mondayWeekday maps time.Weekday (Sunday = 0) to the rule-file convention
// where Monday = 0 and Sunday = 6.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
