package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tallyhq/tally/internal/models"
)

// Node is a compiled predicate over a transaction's fields. Nodes are
// immutable after compilation and safe for concurrent evaluation.
type Node interface {
	Eval(tx *models.Transaction) (bool, error)
}

// ResolutionError reports a field reference that did not resolve against the
// transaction at evaluation time. It is a per-row condition, never fatal.
type ResolutionError struct {
	Field string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("field %q not present on transaction", e.Field)
}

// And evaluates children left to right and stops at the first false.
type And struct {
	Kids []Node
}

func (n *And) Eval(tx *models.Transaction) (bool, error) {
	for _, kid := range n.Kids {
		ok, err := kid.Eval(tx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Or evaluates children left to right and stops at the first true.
type Or struct {
	Kids []Node
}

func (n *Or) Eval(tx *models.Transaction) (bool, error) {
	for _, kid := range n.Kids {
		ok, err := kid.Eval(tx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not negates its child.
type Not struct {
	Kid Node
}

func (n *Not) Eval(tx *models.Transaction) (bool, error) {
	ok, err := n.Kid.Eval(tx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Compare tests a field against a literal with a relational operator. The
// comparison semantics follow the field's declared kind: numeric for number
// fields, chronological for dates, lexical for strings.
type Compare struct {
	Field string
	Kind  models.ValueKind
	Op    string
	Lit   models.Value
}

func (n *Compare) Eval(tx *models.Transaction) (bool, error) {
	v, ok := tx.Field(n.Field)
	if !ok {
		return false, &ResolutionError{Field: n.Field}
	}

	var cmp int
	switch n.Kind {
	case models.KindNumber:
		cmp = v.Num.Cmp(n.Lit.Num)
	case models.KindDate:
		switch {
		case v.Date.Before(n.Lit.Date):
			cmp = -1
		case v.Date.After(n.Lit.Date):
			cmp = 1
		}
	default:
		cmp = strings.Compare(v.Str, n.Lit.Str)
	}

	switch n.Op {
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", n.Op)
}

// Match tests a field's text against a compiled regex.
type Match struct {
	Field string
	Re    *regexp.Regexp
}

func (n *Match) Eval(tx *models.Transaction) (bool, error) {
	v, ok := tx.Field(n.Field)
	if !ok {
		return false, &ResolutionError{Field: n.Field}
	}
	return n.Re.MatchString(v.String()), nil
}

// MatchMode selects the text predicate applied by TextMatch.
type MatchMode int

const (
	// ModeContains is a case-insensitive substring test.
	ModeContains MatchMode = iota
	// ModeStartsWith matches only at the beginning of the field.
	ModeStartsWith
	// ModeNormalized matches ignoring case, spaces, hyphens and punctuation.
	ModeNormalized
)

// TextMatch tests a string field against one or more needles; any needle
// matching makes the node true (anyof is a multi-needle contains).
type TextMatch struct {
	Field   string
	Mode    MatchMode
	Needles []string // pre-normalized per Mode at compile time
}

func (n *TextMatch) Eval(tx *models.Transaction) (bool, error) {
	v, ok := tx.Field(n.Field)
	if !ok {
		return false, &ResolutionError{Field: n.Field}
	}

	var haystack string
	switch n.Mode {
	case ModeNormalized:
		haystack = normalizeText(v.String())
	default:
		haystack = strings.ToUpper(v.String())
	}

	for _, needle := range n.Needles {
		switch n.Mode {
		case ModeStartsWith:
			if strings.HasPrefix(haystack, needle) {
				return true, nil
			}
		default:
			if strings.Contains(haystack, needle) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Fuzzy tests a string field approximately, so rule needles still match
// typo'd statement descriptions. The needle is compared against each run of
// consecutive words in the field that spans the same word count; the node is
// true when the best similarity ratio reaches the threshold.
type Fuzzy struct {
	Field     string
	Needle    string // uppercased at compile time
	Threshold float64
}

func (n *Fuzzy) Eval(tx *models.Transaction) (bool, error) {
	v, ok := tx.Field(n.Field)
	if !ok {
		return false, &ResolutionError{Field: n.Field}
	}

	haystack := strings.ToUpper(v.String())
	if strings.Contains(haystack, n.Needle) {
		return true, nil
	}

	words := strings.Fields(haystack)
	span := len(strings.Fields(n.Needle))
	if span == 0 || len(words) == 0 {
		return false, nil
	}
	if span > len(words) {
		return similarity(n.Needle, strings.Join(words, " ")) >= n.Threshold, nil
	}
	for i := 0; i+span <= len(words); i++ {
		window := strings.Join(words[i:i+span], " ")
		if similarity(n.Needle, window) >= n.Threshold {
			return true, nil
		}
	}
	return false, nil
}

// similarity is the Ratcliff/Obershelp ratio: twice the matched character
// count over the combined length, in [0, 1].
func similarity(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	return 2 * float64(matchingChars(a, b)) / float64(len(a)+len(b))
}

// matchingChars counts characters covered by the longest common substring
// plus, recursively, the matches on either side of it.
func matchingChars(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths[j] is the common-suffix length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					ai = i - size
					bi = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}

// TagCheck tests set membership of a tag. Unknown tags are legal and simply
// evaluate false.
type TagCheck struct {
	Tag string
}

func (n *TagCheck) Eval(tx *models.Transaction) (bool, error) {
	return tx.Tags.Has(n.Tag), nil
}

// Conditions returns the number of leaf conditions in a predicate tree. It
// ranks rule specificity for most_specific matching, where a rule combining
// more conditions beats a broader one.
func Conditions(n Node) int {
	switch t := n.(type) {
	case *And:
		total := 0
		for _, kid := range t.Kids {
			total += Conditions(kid)
		}
		return total
	case *Or:
		total := 0
		for _, kid := range t.Kids {
			total += Conditions(kid)
		}
		return total
	case *Not:
		return Conditions(t.Kid)
	default:
		return 1
	}
}

// normalizeText uppercases and strips everything that is not a letter or
// digit, so "UBER EATS", "Uber-Eats" and "UBEREATS" compare equal.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
