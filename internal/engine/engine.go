// Package engine wires the compiled artifacts (format templates, rules,
// views) into the per-row classification pipeline and the batch runner.
//
// Compilation happens once per run; the compiled artifacts are immutable and
// shared read-only across workers. Per-row classification has no cross-row
// dependency, so rows are processed independently and per-row errors never
// abort the batch.
package engine

import (
	"errors"

	"github.com/tallyhq/tally/internal/expr"
	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/parsererror"
	"github.com/tallyhq/tally/internal/rules"
	"github.com/tallyhq/tally/internal/views"
)

// Classified is one finished transaction plus the labels of every view it
// belongs to.
type Classified struct {
	models.Transaction
	Views []string
}

// Result is the output of a batch run: classified rows in input order plus
// the non-fatal faults recorded along the way.
type Result struct {
	Rows    []Classified
	Faults  []parsererror.Fault
	Summary *parsererror.FaultSummary
}

// Engine classifies decoded rows against a compiled rule and view set.
type Engine struct {
	ruleSet *rules.Set
	matcher *rules.Matcher
	viewSet *views.Set
	logger  logging.Logger
}

// New creates an Engine over compiled artifacts. viewSet may hold zero views,
// in which case every transaction belongs to zero views.
func New(ruleSet *rules.Set, mode rules.Mode, viewSet *views.Set, logger logging.Logger) *Engine {
	if viewSet == nil {
		viewSet = &views.Set{}
	}
	return &Engine{
		ruleSet: ruleSet,
		matcher: rules.NewMatcher(ruleSet, mode, logger),
		viewSet: viewSet,
		logger:  logger,
	}
}

// Classify runs one decoded field map through the pipeline: build the draft,
// apply prologue transforms, match rules, assign views. The returned faults
// are per-row and never abort anything; the row itself is always classified,
// best-effort.
func (e *Engine) Classify(source string, line int, fields models.FieldMap) (Classified, []parsererror.Fault) {
	var faults []parsererror.Fault
	fault := func(kind parsererror.FaultKind, err error) {
		faults = append(faults, parsererror.Fault{
			Source:  source,
			Line:    line,
			Kind:    kind,
			Message: err.Error(),
		})
	}

	tx := models.NewTransaction(source, line, fields)

	if err := e.ruleSet.Prologue.Apply(&tx); err != nil {
		fault(parsererror.FaultModifier, err)
	}

	for _, err := range e.matcher.Match(&tx) {
		var resErr *expr.ResolutionError
		if errors.As(err, &resErr) {
			fault(parsererror.FaultFieldResolution, err)
		} else {
			fault(parsererror.FaultModifier, err)
		}
	}

	labels, errs := e.viewSet.Assign(&tx)
	for _, err := range errs {
		fault(parsererror.FaultViewPredicate, err)
	}

	return Classified{Transaction: tx, Views: labels}, faults
}
