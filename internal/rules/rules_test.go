package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/expr"
	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/parsererror"
)

const sampleRules = `
# Transforms applied to every transaction before matching.
modify: description = regex_replace("^SQ \\*", "")

[Subscriptions]               # tag-only, never terminal
match: anyof("netflix", "spotify", "hulu")
tags: subscription, recurring

[Coffee Shops]
match: contains("coffee") or contains("espresso")
category: Dining
subcategory: Coffee
tags: caffeine

[Streaming]
match: contains("netflix")
category: Entertainment
subcategory: Streaming
merchant: Netflix
`

func parseSet(t *testing.T, text string) *Set {
	t.Helper()
	set, err := Parse(strings.NewReader(text), "test.rules", expr.Options{})
	require.NoError(t, err)
	return set
}

func newTx(description string) *models.Transaction {
	return &models.Transaction{
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromFloat(9.99),
		Description: description,
		Tags:        models.NewTagSet(),
		Extra:       models.FieldMap{},
	}
}

func TestParseRuleFile(t *testing.T) {
	set := parseSet(t, sampleRules)

	require.Len(t, set.Rules, 3)
	require.Len(t, set.Prologue, 1)

	subs := set.Rules[0]
	assert.Equal(t, "Subscriptions", subs.Name)
	assert.Equal(t, 0, subs.Order)
	assert.True(t, subs.TagOnly())
	assert.True(t, subs.Tags.Has("subscription"))
	assert.True(t, subs.Tags.Has("recurring"))

	coffee := set.Rules[1]
	assert.Equal(t, "Dining", coffee.Category)
	assert.Equal(t, "Coffee", coffee.Subcategory)
	assert.False(t, coffee.TagOnly())
	assert.Equal(t, "Coffee Shops", coffee.MerchantLabel())

	streaming := set.Rules[2]
	assert.Equal(t, "Netflix", streaming.MerchantLabel())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"rule without match", "[Orphan]\ncategory: X"},
		{"unterminated section", "[Broken\nmatch: amount > 0"},
		{"empty section name", "[]\nmatch: amount > 0"},
		{"unknown key", "[R]\nmatch: amount > 0\ncolor: red"},
		{"bare line", "[R]\nmatch amount"},
		{"category in prologue", "category: X\n[R]\nmatch: amount > 0"},
		{"bad expression", "[R]\nmatch: nosuchfield > 0"},
		{"bad prologue transform", "modify: amount sqrt\n[R]\nmatch: amount > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.text), "test.rules", expr.Options{})
			require.Error(t, err)
		})
	}
}

func TestParseErrorCarriesLocation(t *testing.T) {
	_, err := Parse(strings.NewReader("[R]\ncolor: red"), "test.rules", expr.Options{})
	require.Error(t, err)
	var fileErr *parsererror.RuleFileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "test.rules", fileErr.File)
	assert.Equal(t, 2, fileErr.Line)
}

func TestCommentsInsideQuotesSurvive(t *testing.T) {
	set := parseSet(t, "[Hash]\nmatch: contains(\"café #3\")  # trailing comment\ncategory: Dining")
	require.Len(t, set.Rules, 1)

	tx := newTx("CAFÉ #3 DOWNTOWN")
	errs := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{}).Match(tx)
	assert.Empty(t, errs)
	assert.Equal(t, "Dining", tx.Category)
}

func TestFirstMatchWins(t *testing.T) {
	// Both rules match; the earlier one owns the classification.
	set := parseSet(t, `
[Broad]
match: contains("market")
category: Groceries

[Narrow]
match: contains("farmers market")
category: Dining
`)
	m := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{})

	tx := newTx("FARMERS MARKET #12")
	errs := m.Match(tx)
	assert.Empty(t, errs)
	assert.Equal(t, "Groceries", tx.Category)
	assert.Equal(t, "Broad", tx.Match.RuleName)
	assert.Equal(t, 0, tx.Match.RuleOrder)
	assert.True(t, tx.Match.Matched)
}

func TestMatchIsDeterministic(t *testing.T) {
	set := parseSet(t, sampleRules)
	m := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{})

	for i := 0; i < 10; i++ {
		tx := newTx("NETFLIX.COM")
		m.Match(tx)
		assert.Equal(t, "Entertainment", tx.Category)
		assert.Equal(t, []string{"recurring", "subscription"}, tx.Tags.Sorted())
	}
}

func TestTagOnlyRulesAccumulate(t *testing.T) {
	set := parseSet(t, sampleRules)
	m := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{})

	// Matches the tag-only Subscriptions rule and then the terminal
	// Streaming rule; both contribute.
	tx := newTx("NETFLIX.COM")
	errs := m.Match(tx)
	assert.Empty(t, errs)
	assert.Equal(t, "Entertainment", tx.Category)
	assert.Equal(t, "Netflix", tx.Merchant)
	assert.Equal(t, []string{"recurring", "subscription"}, tx.Tags.Sorted())
}

func TestNoMatchFallsBackToUncategorized(t *testing.T) {
	set := parseSet(t, sampleRules)
	m := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{})

	tx := newTx("HARDWARE STORE")
	errs := m.Match(tx)
	assert.Empty(t, errs)
	assert.Equal(t, models.CategoryUncategorized, tx.Category)
	assert.Empty(t, tx.Tags)
	assert.False(t, tx.Match.Matched)
}

func TestEmptyRuleSetUncategorized(t *testing.T) {
	m := NewMatcher(&Set{}, ModeFirstMatch, &logging.MockLogger{})

	tx := newTx("ANYTHING")
	assert.Empty(t, m.Match(tx))
	assert.Equal(t, models.CategoryUncategorized, tx.Category)
	assert.Empty(t, tx.Tags)
}

func TestModeAllTagsKeepsScanning(t *testing.T) {
	text := `
[Terminal]
match: contains("gym")
category: Health

[Late Tag]
match: contains("gym")
tags: fitness
`
	set := parseSet(t, text)

	// first_match stops at Terminal, so the later tag-only rule never runs.
	tx := newTx("CITY GYM MEMBERSHIP")
	NewMatcher(set, ModeFirstMatch, &logging.MockLogger{}).Match(tx)
	assert.Equal(t, "Health", tx.Category)
	assert.Empty(t, tx.Tags)

	// all_tags keeps evaluating tag-only rules past the winner.
	tx = newTx("CITY GYM MEMBERSHIP")
	NewMatcher(set, ModeAllTags, &logging.MockLogger{}).Match(tx)
	assert.Equal(t, "Health", tx.Category)
	assert.Equal(t, []string{"fitness"}, tx.Tags.Sorted())
}

func TestAllTagsNeverReclassifies(t *testing.T) {
	set := parseSet(t, `
[First]
match: contains("store")
category: Shopping

[Second]
match: contains("store")
category: Other
`)
	tx := newTx("BOOK STORE")
	NewMatcher(set, ModeAllTags, &logging.MockLogger{}).Match(tx)
	assert.Equal(t, "Shopping", tx.Category)
	assert.Equal(t, "First", tx.Match.RuleName)
}

func TestMostSpecificWins(t *testing.T) {
	// Declaration order says Broad first; specificity says Narrow wins.
	set := parseSet(t, `
[Broad]
match: contains("market")
category: Groceries
tags: broad

[Narrow]
match: contains("market") and amount < 50
category: Dining
tags: narrow
`)
	assert.Equal(t, 1, set.Rules[0].Conditions)
	assert.Equal(t, 2, set.Rules[1].Conditions)

	tx := newTx("FARMERS MARKET #12")
	errs := NewMatcher(set, ModeMostSpecific, &logging.MockLogger{}).Match(tx)
	assert.Empty(t, errs)
	assert.Equal(t, "Dining", tx.Category)
	assert.Equal(t, "Narrow", tx.Match.RuleName)

	// Only the winner's tags apply; the losing rule contributes nothing.
	assert.Equal(t, []string{"narrow"}, tx.Tags.Sorted())

	// The same set under first_match keeps declaration order.
	tx = newTx("FARMERS MARKET #12")
	NewMatcher(set, ModeFirstMatch, &logging.MockLogger{}).Match(tx)
	assert.Equal(t, "Groceries", tx.Category)
}

func TestMostSpecificTieGoesToEarlierRule(t *testing.T) {
	set := parseSet(t, `
[First]
match: contains("store")
category: Shopping

[Second]
match: contains("store")
category: Other
`)
	tx := newTx("BOOK STORE")
	NewMatcher(set, ModeMostSpecific, &logging.MockLogger{}).Match(tx)
	assert.Equal(t, "Shopping", tx.Category)
	assert.Equal(t, "First", tx.Match.RuleName)
}

func TestMostSpecificKeepsTagOnlyRules(t *testing.T) {
	set := parseSet(t, `
[Specific]
match: contains("gym") and amount < 50
category: Health

[Recurring]
match: contains("gym")
tags: recurring
`)
	tx := newTx("CITY GYM MEMBERSHIP")
	errs := NewMatcher(set, ModeMostSpecific, &logging.MockLogger{}).Match(tx)
	assert.Empty(t, errs)
	assert.Equal(t, "Health", tx.Category)
	assert.Equal(t, []string{"recurring"}, tx.Tags.Sorted())
}

func TestMostSpecificNoMatchUncategorized(t *testing.T) {
	set := parseSet(t, sampleRules)
	tx := newTx("HARDWARE STORE")
	NewMatcher(set, ModeMostSpecific, &logging.MockLogger{}).Match(tx)
	assert.Equal(t, models.CategoryUncategorized, tx.Category)
	assert.Empty(t, tx.Tags)
}

func TestFuzzyRuleCatchesTypo(t *testing.T) {
	set := parseSet(t, `
[Whole Foods]
match: fuzzy("whole foods")
category: Groceries
`)
	m := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{})

	tx := newTx("WHOEL FOODS MKT #123")
	assert.Empty(t, m.Match(tx))
	assert.Equal(t, "Groceries", tx.Category)

	tx = newTx("NETFLIX.COM")
	m.Match(tx)
	assert.Equal(t, models.CategoryUncategorized, tx.Category)
}

func TestRuleModifiersRunOnMatch(t *testing.T) {
	set := parseSet(t, `
[Refund]
match: contains("refund")
modify: amount = negate
category: Refunds
`)
	m := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{})

	tx := newTx("REFUND: RETURNED ITEM")
	assert.Empty(t, m.Match(tx))
	assert.Equal(t, "-9.99", tx.Amount.String())

	// A non-matching transaction keeps its amount.
	tx = newTx("COFFEE")
	m.Match(tx)
	assert.Equal(t, "9.99", tx.Amount.String())
}

func TestEvalErrorSkipsRuleAndContinues(t *testing.T) {
	fields, err := models.BaseFieldTable().Merge(models.FieldTable{"card_suffix": models.KindString})
	require.NoError(t, err)

	set, err := Parse(strings.NewReader(`
[Needs Custom Field]
match: card_suffix == "1234"
category: CardA

[Fallback]
match: contains("shop")
category: Shopping
`), "test.rules", expr.Options{Fields: fields})
	require.NoError(t, err)

	// card_suffix is declared but absent on the row: the first rule errors,
	// the scan continues, the second rule classifies.
	tx := newTx("GIFT SHOP")
	errs := NewMatcher(set, ModeFirstMatch, &logging.MockLogger{}).Match(tx)
	require.Len(t, errs, 1)
	var resErr *expr.ResolutionError
	assert.ErrorAs(t, errs[0], &resErr)
	assert.Equal(t, "Shopping", tx.Category)
}
