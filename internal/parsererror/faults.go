package parsererror

import (
	"fmt"
	"sort"
	"strings"
)

// FaultKind classifies a per-row, non-fatal error.
type FaultKind string

const (
	// FaultLineShapeMismatch means a line's literal segments did not align
	// with the compiled template.
	FaultLineShapeMismatch FaultKind = "line_shape_mismatch"

	// FaultFieldResolution means an expression referenced a field the
	// transaction does not carry.
	FaultFieldResolution FaultKind = "field_resolution"

	// FaultModifier means a field transform could not be applied.
	FaultModifier FaultKind = "modifier"

	// FaultViewPredicate means a view filter failed to evaluate; the row is
	// excluded from that view only.
	FaultViewPredicate FaultKind = "view_predicate"

	// FaultSourceUnreadable means an input file could not be opened or read.
	FaultSourceUnreadable FaultKind = "source_unreadable"
)

// Fault records a single non-fatal error tied to an input row or file.
type Fault struct {
	Source  string
	Line    int
	Kind    FaultKind
	Message string
}

func (f Fault) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", f.Source, f.Line, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Source, f.Kind, f.Message)
}

// FaultSummary aggregates faults for end-of-run reporting.
type FaultSummary struct {
	Counts   map[FaultKind]int
	Examples []Fault

	maxExamples int
}

// NewFaultSummary creates a summary keeping at most maxExamples sample faults.
func NewFaultSummary(maxExamples int) *FaultSummary {
	if maxExamples <= 0 {
		maxExamples = 10
	}
	return &FaultSummary{
		Counts:      make(map[FaultKind]int),
		maxExamples: maxExamples,
	}
}

// Add records a fault in the summary.
func (s *FaultSummary) Add(f Fault) {
	s.Counts[f.Kind]++
	if len(s.Examples) < s.maxExamples {
		s.Examples = append(s.Examples, f)
	}
}

// AddAll records every fault in the slice.
func (s *FaultSummary) AddAll(faults []Fault) {
	for _, f := range faults {
		s.Add(f)
	}
}

// Total returns the number of recorded faults across all kinds.
func (s *FaultSummary) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// String renders the summary as "kind=count" pairs in stable order followed
// by the sample faults.
func (s *FaultSummary) String() string {
	if s.Total() == 0 {
		return "no faults"
	}

	kinds := make([]string, 0, len(s.Counts))
	for kind := range s.Counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var b strings.Builder
	for i, kind := range kinds {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", kind, s.Counts[FaultKind(kind)])
	}
	for _, f := range s.Examples {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}
