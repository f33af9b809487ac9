package engine

import (
	"bufio"
	"context"
	"os"

	"github.com/tallyhq/tally/internal/format"
)

// Source is one input file bound to its compiled format template.
type Source struct {
	// Name is the logical data-source name from settings, used in faults
	// and on classified transactions.
	Name string

	// Path is the resolved file path.
	Path string

	// Template decodes this source's lines.
	Template *format.Template

	// SkipHeader skips the first line of the file.
	SkipHeader bool
}

// Line is one raw input line with its 1-based position.
type Line struct {
	Number int
	Text   string
}

// EachLine streams the file's lines through fn lazily. Every call reopens
// the file, so a source can be re-iterated from the start. Cancellation of
// ctx stops this file only; blank lines are skipped.
func (s *Source) EachLine(ctx context.Context, fn func(Line) error) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		if s.SkipHeader && lineNo == 1 {
			continue
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := fn(Line{Number: lineNo, Text: text}); err != nil {
			return err
		}
	}
	return scanner.Err()
}
