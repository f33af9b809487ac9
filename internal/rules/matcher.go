package rules

import (
	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/models"
)

// Mode controls how the winning category-bearing rule is selected and how
// the scan interacts with tag-only rules.
type Mode string

const (
	// ModeFirstMatch stops the scan at the first category-bearing match.
	// Tag-only rules ordered before it still contribute their tags.
	ModeFirstMatch Mode = "first_match"

	// ModeAllTags keeps evaluating tag-only rules after the winning
	// category-bearing rule, so later tag-only rules may still add tags.
	ModeAllTags Mode = "all_tags"

	// ModeMostSpecific evaluates every rule and awards the classification to
	// the matching category-bearing rule with the most conditions; ties go
	// to the earlier rule. Tag-only rules contribute regardless of position.
	ModeMostSpecific Mode = "most_specific"
)

// Matcher evaluates a compiled rule set against transactions. It holds the
// set read-only and is safe for concurrent use.
type Matcher struct {
	set    *Set
	mode   Mode
	logger logging.Logger
}

// NewMatcher creates a matcher over a compiled set.
func NewMatcher(set *Set, mode Mode, logger logging.Logger) *Matcher {
	if mode == "" {
		mode = ModeFirstMatch
	}
	return &Matcher{set: set, mode: mode, logger: logger}
}

// Match classifies one decoded transaction in place.
//
// Rules are scanned in declaration order. A matching tag-only rule adds its
// tags and the scan continues; the first matching rule with a category wins
// the classification (category, subcategory, merchant, plus its tags). With
// no match at all the transaction falls back to Uncategorized and keeps an
// empty tag set; it is never dropped.
//
// Per-rule evaluation errors (typically unresolved custom fields) are
// returned for fault recording; the rule is treated as not matching and the
// scan continues.
func (m *Matcher) Match(tx *models.Transaction) []error {
	if m.mode == ModeMostSpecific {
		return m.matchMostSpecific(tx)
	}

	var errs []error
	classified := false

	for i := range m.set.Rules {
		rule := &m.set.Rules[i]

		if classified && !rule.TagOnly() {
			continue
		}

		ok, err := rule.Predicate.Eval(tx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		tx.Tags.AddAll(rule.Tags)
		if err := rule.Modifiers.Apply(tx); err != nil {
			errs = append(errs, err)
		}

		if rule.TagOnly() {
			continue
		}

		tx.Category = rule.Category
		tx.Subcategory = rule.Subcategory
		tx.Merchant = rule.MerchantLabel()
		tx.Match = models.MatchInfo{RuleName: rule.Name, RuleOrder: rule.Order, Matched: true}
		classified = true

		m.logger.Debug("Rule matched",
			logging.F("rule", rule.Name),
			logging.F("order", rule.Order),
			logging.F("category", rule.Category))

		if m.mode == ModeFirstMatch {
			break
		}
	}

	if !classified {
		tx.Category = models.CategoryUncategorized
	}
	return errs
}

// matchMostSpecific evaluates every rule and classifies by the matching
// category-bearing rule with the highest condition count. Only the winner's
// tags and modifiers apply; losing category-bearing matches contribute
// nothing. Tag-only rules behave as in the ordered scan.
func (m *Matcher) matchMostSpecific(tx *models.Transaction) []error {
	var errs []error
	var winner *Rule

	for i := range m.set.Rules {
		rule := &m.set.Rules[i]

		ok, err := rule.Predicate.Eval(tx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		if rule.TagOnly() {
			tx.Tags.AddAll(rule.Tags)
			if err := rule.Modifiers.Apply(tx); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if winner == nil || rule.Conditions > winner.Conditions {
			winner = rule
		}
	}

	if winner == nil {
		tx.Category = models.CategoryUncategorized
		return errs
	}

	tx.Tags.AddAll(winner.Tags)
	if err := winner.Modifiers.Apply(tx); err != nil {
		errs = append(errs, err)
	}
	tx.Category = winner.Category
	tx.Subcategory = winner.Subcategory
	tx.Merchant = winner.MerchantLabel()
	tx.Match = models.MatchInfo{RuleName: winner.Name, RuleOrder: winner.Order, Matched: true}

	m.logger.Debug("Rule matched",
		logging.F("rule", winner.Name),
		logging.F("order", winner.Order),
		logging.F("conditions", winner.Conditions),
		logging.F("category", winner.Category))

	return errs
}
