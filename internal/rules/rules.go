// Package rules loads user-authored .rules files and owns the rule matching
// engine. A compiled rule set is immutable for the lifetime of a run.
package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tallyhq/tally/internal/expr"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/modifier"
	"github.com/tallyhq/tally/internal/parsererror"
)

// Rule is one compiled classification rule. Order is the file declaration
// order; matching is order-sensitive by design.
type Rule struct {
	Name      string
	Order     int
	Predicate expr.Node

	// Conditions is the number of leaf conditions in the match expression,
	// the specificity rank used by most_specific mode.
	Conditions int

	Modifiers   modifier.Pipeline
	Category    string
	Subcategory string
	Merchant    string
	Tags        models.TagSet
}

// TagOnly reports whether the rule contributes tags without owning the
// classification. Tag-only rules never stop the matching scan.
func (r *Rule) TagOnly() bool {
	return r.Category == ""
}

// MerchantLabel returns the merchant name the rule assigns: the explicit
// merchant override when present, otherwise the rule's section name.
func (r *Rule) MerchantLabel() string {
	if r.Merchant != "" {
		return r.Merchant
	}
	return r.Name
}

// Set is a compiled, ordered rule set plus the file-prologue transforms that
// run against every transaction before matching.
type Set struct {
	Rules    []Rule
	Prologue modifier.Pipeline
}

// Load reads and compiles a .rules file.
func Load(path string, opts expr.Options) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open rules file: %w", err)
	}
	defer f.Close()
	return Parse(f, path, opts)
}

// Parse compiles rule source text. name is used in diagnostics.
//
// File format: an optional prologue of "modify:" lines, then [Name] sections
// each carrying "match:" (required), optional "modify:" lines, and the
// classification outputs "category:", "subcategory:", "tags:", "merchant:".
// Lines starting with # are comments.
func Parse(r io.Reader, name string, opts expr.Options) (*Set, error) {
	set := &Set{}

	var current *Rule
	flush := func(line int) error {
		if current == nil {
			return nil
		}
		if current.Predicate == nil {
			return &parsererror.RuleFileError{File: name, Line: line, Msg: fmt.Sprintf("rule [%s] has no match expression", current.Name)}
		}
		set.Rules = append(set.Rules, *current)
		current = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: "unterminated section header"}
			}
			if err := flush(lineNo); err != nil {
				return nil, err
			}
			current = &Rule{
				Name:  strings.TrimSpace(line[1 : len(line)-1]),
				Order: len(set.Rules),
				Tags:  models.NewTagSet(),
			}
			if current.Name == "" {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: "empty section name"}
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: fmt.Sprintf("expected 'key: value', got %q", line)}
		}
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)

		if current == nil {
			// Prologue: only transforms may appear before the first section.
			if key != "modify" {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: fmt.Sprintf("%q is only valid inside a [section]", key)}
			}
			d, err := modifier.ParseDirective(value)
			if err != nil {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: err.Error()}
			}
			set.Prologue = append(set.Prologue, d)
			continue
		}

		switch key {
		case "match":
			node, err := expr.Compile(value, opts)
			if err != nil {
				return nil, err
			}
			current.Predicate = node
			current.Conditions = expr.Conditions(node)
		case "modify":
			d, err := modifier.ParseDirective(value)
			if err != nil {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: err.Error()}
			}
			current.Modifiers = append(current.Modifiers, d)
		case "category":
			current.Category = value
		case "subcategory":
			current.Subcategory = value
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				current.Tags.Add(tag)
			}
		case "merchant":
			current.Merchant = value
		default:
			return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: fmt.Sprintf("unknown key %q", key)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	if err := flush(lineNo); err != nil {
		return nil, err
	}
	return set, nil
}

// stripComment removes a trailing # comment (outside quotes) and surrounding
// whitespace.
func stripComment(line string) string {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == '\\' {
				i++
			} else if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '#':
			return strings.TrimSpace(line[:i])
		}
	}
	return strings.TrimSpace(line)
}
