package modifier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/models"
)

func transactionWith(amount string, extra models.FieldMap) *models.Transaction {
	num, _ := decimal.NewFromString(amount)
	if extra == nil {
		extra = models.FieldMap{}
	}
	return &models.Transaction{
		Amount:      num,
		Description: "SQ *COFFEE SHOP",
		Tags:        models.NewTagSet(),
		Extra:       extra,
	}
}

func TestParseAndApply(t *testing.T) {
	tests := []struct {
		name      string
		directive string
		amount    string
		extra     models.FieldMap
		want      string
	}{
		{"abs on negative", "amount = abs", "-25.40", nil, "25.4"},
		{"abs on positive", "amount = abs", "25.40", nil, "25.4"},
		{"negate", "amount = negate", "25.40", nil, "-25.4"},
		{"multiply", "amount = multiply(1.1)", "100", nil, "110"},
		{"round", "amount = round(2)", "4.567", nil, "4.57"},
		{
			"subtract other field",
			"amount = subtract(fee)",
			"50.00",
			models.FieldMap{"fee": models.NumberValue(decimal.NewFromFloat(2.00))},
			"48",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDirective(tt.directive)
			require.NoError(t, err)

			tx := transactionWith(tt.amount, tt.extra)
			require.NoError(t, Pipeline{d}.Apply(tx))
			assert.Equal(t, tt.want, tx.Amount.String())
		})
	}
}

func TestAbsIsIdempotent(t *testing.T) {
	d, err := ParseDirective("amount = abs")
	require.NoError(t, err)

	tx := transactionWith("-9.99", nil)
	require.NoError(t, Pipeline{d}.Apply(tx))
	once := tx.Amount
	require.NoError(t, Pipeline{d}.Apply(tx))
	assert.True(t, once.Equal(tx.Amount))
}

func TestDoubleNegateIsIdentity(t *testing.T) {
	d, err := ParseDirective("amount = negate")
	require.NoError(t, err)

	tx := transactionWith("12.34", nil)
	require.NoError(t, Pipeline{d, d}.Apply(tx))
	assert.Equal(t, "12.34", tx.Amount.String())
}

func TestRegexReplace(t *testing.T) {
	d, err := ParseDirective(`description = regex_replace("^SQ \\*", "")`)
	require.NoError(t, err)

	tx := transactionWith("5.00", nil)
	require.NoError(t, Pipeline{d}.Apply(tx))
	assert.Equal(t, "COFFEE SHOP", tx.Description)
}

func TestPipelineRunsInOrder(t *testing.T) {
	negate, err := ParseDirective("amount = negate")
	require.NoError(t, err)
	abs, err := ParseDirective("amount = abs")
	require.NoError(t, err)

	// negate then abs ends positive; abs then negate ends negative.
	tx := transactionWith("7.00", nil)
	require.NoError(t, Pipeline{negate, abs}.Apply(tx))
	assert.Equal(t, "7", tx.Amount.String())

	tx = transactionWith("7.00", nil)
	require.NoError(t, Pipeline{abs, negate}.Apply(tx))
	assert.Equal(t, "-7", tx.Amount.String())
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name      string
		directive string
	}{
		{"abs on string field", "description = abs"},
		{"subtract missing field", "amount = subtract(fee)"},
		{"subtract non-number field", "amount = subtract(description)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDirective(tt.directive)
			require.NoError(t, err)
			tx := transactionWith("10.00", nil)
			assert.Error(t, Pipeline{d}.Apply(tx))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		directive string
	}{
		{"no equals sign", "amount abs"},
		{"unknown op", "amount = sqrt"},
		{"abs with argument", "amount = abs(1)"},
		{"multiply without argument", "amount = multiply"},
		{"multiply bad constant", "amount = multiply(ten)"},
		{"round fractional places", "amount = round(1.5)"},
		{"regex_replace one argument", `description = regex_replace("x")`},
		{"regex_replace bad pattern", `description = regex_replace("[oops", "")`},
		{"unterminated quote", `description = regex_replace("a, "b")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDirective(tt.directive)
			assert.Error(t, err)
		})
	}
}

func TestSplitArgsHonorsQuotes(t *testing.T) {
	args, err := splitArgs(`"a, b", "c"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a, b", "c"}, args)
}
