// Package views buckets classified transactions into named, possibly
// overlapping views for report grouping. Views are projections, not a
// partition: one transaction may belong to zero, one, or many views.
package views

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tallyhq/tally/internal/expr"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/parsererror"
)

// View is one compiled view definition. Order determines report display
// order only, never exclusivity.
type View struct {
	Label       string
	Description string
	Order       int
	Predicate   expr.Node
}

// Set is an immutable ordered list of compiled views.
type Set struct {
	Views []View
}

// Load reads and compiles a views file.
func Load(path string, opts expr.Options) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open views file: %w", err)
	}
	defer f.Close()
	return Parse(f, path, opts)
}

// Parse compiles views source text: [Label] sections with an optional
// "description:" and a required "filter:" expression.
func Parse(r io.Reader, name string, opts expr.Options) (*Set, error) {
	set := &Set{}

	var current *View
	flush := func(line int) error {
		if current == nil {
			return nil
		}
		if current.Predicate == nil {
			return &parsererror.RuleFileError{File: name, Line: line, Msg: fmt.Sprintf("view [%s] has no filter expression", current.Label)}
		}
		set.Views = append(set.Views, *current)
		current = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: "unterminated section header"}
			}
			if err := flush(lineNo); err != nil {
				return nil, err
			}
			current = &View{
				Label: strings.TrimSpace(line[1 : len(line)-1]),
				Order: len(set.Views),
			}
			if current.Label == "" {
				return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: "empty view label"}
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok || current == nil {
			return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: fmt.Sprintf("expected a [view] section before %q", line)}
		}
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)

		switch key {
		case "filter":
			node, err := expr.Compile(value, opts)
			if err != nil {
				return nil, err
			}
			current.Predicate = node
		case "description":
			current.Description = value
		default:
			return nil, &parsererror.RuleFileError{File: name, Line: lineNo, Msg: fmt.Sprintf("unknown key %q", key)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading views: %w", err)
	}
	if err := flush(lineNo); err != nil {
		return nil, err
	}
	return set, nil
}

// Assign evaluates every view predicate independently against a finished
// transaction and returns the labels it belongs to, in view order. A
// predicate evaluation error excludes the transaction from that view only
// and is returned for fault recording.
func (s *Set) Assign(tx *models.Transaction) ([]string, []error) {
	var labels []string
	var errs []error
	for i := range s.Views {
		v := &s.Views[i]
		ok, err := v.Predicate.Eval(tx)
		if err != nil {
			errs = append(errs, fmt.Errorf("view [%s]: %w", v.Label, err))
			continue
		}
		if ok {
			labels = append(labels, v.Label)
		}
	}
	return labels, errs
}
