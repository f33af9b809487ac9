package models

// CategoryUncategorized is the fallback category assigned when no rule
// predicate matches a transaction.
const CategoryUncategorized = "Uncategorized"

// Field names every decoded transaction can expose to expressions.
const (
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldMerchant    = "merchant"
	FieldCategory    = "category"
	FieldSubcategory = "subcategory"

	// Date components derived from the transaction date.
	FieldMonth   = "month"
	FieldYear    = "year"
	FieldDay     = "day"
	FieldWeekday = "weekday"
)

// DerivedDateFields maps each derived date-component field to its kind.
// Weekday follows the rule-file convention: 0 = Monday ... 6 = Sunday.
var DerivedDateFields = FieldTable{
	FieldMonth:   KindNumber,
	FieldYear:    KindNumber,
	FieldDay:     KindNumber,
	FieldWeekday: KindNumber,
}

// BaseFieldTable returns the field table every transaction exposes to
// expressions, before template-specific custom captures are merged in.
func BaseFieldTable() FieldTable {
	t := FieldTable{
		FieldDate:        KindDate,
		FieldAmount:      KindNumber,
		FieldDescription: KindString,
		FieldMerchant:    KindString,
		FieldCategory:    KindString,
		FieldSubcategory: KindString,
	}
	for k, v := range DerivedDateFields {
		t[k] = v
	}
	return t
}
