// Package parsererror defines the error taxonomy for the classification
// pipeline. Compile-time errors (format templates, rule expressions, regexes)
// abort a run; runtime faults are recorded per row and the run continues.
package parsererror

import "fmt"

// FormatSyntaxError reports an invalid format template pattern.
// Pos is the byte offset of the offending placeholder within the pattern.
type FormatSyntaxError struct {
	Pattern string
	Pos     int
	Msg     string
}

func (e *FormatSyntaxError) Error() string {
	return fmt.Sprintf("invalid format template at offset %d: %s (pattern: %q)", e.Pos, e.Msg, e.Pattern)
}

// ExpressionSyntaxError reports an unparseable rule or view expression.
type ExpressionSyntaxError struct {
	Source string
	Pos    int
	Msg    string
}

func (e *ExpressionSyntaxError) Error() string {
	return fmt.Sprintf("invalid expression at offset %d: %s (in: %q)", e.Pos, e.Msg, e.Source)
}

// RegexCompileError reports a pattern that failed to compile, either a custom
// capture pattern or a regex() predicate argument.
type RegexCompileError struct {
	Pattern string
	Context string
	Err     error
}

func (e *RegexCompileError) Error() string {
	return fmt.Sprintf("cannot compile regex %q in %s: %v", e.Pattern, e.Context, e.Err)
}

func (e *RegexCompileError) Unwrap() error {
	return e.Err
}

// RuleFileError reports a structural problem in a .rules file, such as a
// rule body line outside any section or a missing match expression.
type RuleFileError struct {
	File string
	Line int
	Msg  string
}

func (e *RuleFileError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}
