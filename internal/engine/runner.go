package engine

import (
	"context"
	"runtime"
	"sync"

	"github.com/tallyhq/tally/internal/format"
	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/parsererror"
)

// sequentialThreshold is the row count below which a file is processed on
// the calling goroutine; the pool overhead isn't worth it for small files.
const sequentialThreshold = 100

// Runner executes the batch: it streams each source's lines, decodes and
// classifies them across a worker pool, and aggregates rows and faults.
// Workers share only the immutable compiled artifacts, so no locking is
// needed during classification.
type Runner struct {
	engine  *Engine
	logger  logging.Logger
	workers int
}

// NewRunner creates a batch runner. workers <= 0 selects NumCPU.
func NewRunner(engine *Engine, workers int, logger logging.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{engine: engine, logger: logger, workers: workers}
}

// Run processes every source in order. Per-file and per-row errors are
// recorded as faults and processing continues with the remaining input;
// cancelling ctx stops the current file without discarding finished rows.
func (r *Runner) Run(ctx context.Context, sources []Source) *Result {
	result := &Result{Summary: parsererror.NewFaultSummary(10)}

	for i := range sources {
		src := &sources[i]
		log := r.logger.WithField("source", src.Name)

		lines, err := collectLines(ctx, src)
		if err != nil {
			fault := parsererror.Fault{
				Source:  src.Name,
				Kind:    parsererror.FaultSourceUnreadable,
				Message: err.Error(),
			}
			result.Faults = append(result.Faults, fault)
			result.Summary.Add(fault)
			log.WithError(err).Warn("Skipping unreadable source")
			continue
		}

		rows, faults := r.processLines(ctx, src, lines)
		result.Rows = append(result.Rows, rows...)
		result.Faults = append(result.Faults, faults...)
		result.Summary.AddAll(faults)

		log.Info("Source processed",
			logging.F("rows", len(rows)),
			logging.F("faults", len(faults)))
	}

	return result
}

// collectLines drains one source's lazy line stream.
func collectLines(ctx context.Context, src *Source) ([]Line, error) {
	var lines []Line
	err := src.EachLine(ctx, func(line Line) error {
		lines = append(lines, line)
		return nil
	})
	return lines, err
}

// rowOutcome carries one line's results back from a worker, with its
// original index so input order is restored.
type rowOutcome struct {
	index  int
	row    Classified
	faults []parsererror.Fault
	ok     bool
}

// processLines decodes and classifies a file's lines, sequentially for small
// files and over the worker pool otherwise. Rows come back in input order;
// rows whose shape did not match the template are counted and skipped.
func (r *Runner) processLines(ctx context.Context, src *Source, lines []Line) ([]Classified, []parsererror.Fault) {
	outcomes := make([]rowOutcome, len(lines))

	if len(lines) < sequentialThreshold || r.workers == 1 {
		for i, line := range lines {
			outcomes[i] = r.processOne(src, line, i)
		}
	} else {
		type job struct {
			index int
			line  Line
		}
		jobs := make(chan job, r.workers)

		var wg sync.WaitGroup
		for w := 0; w < r.workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobs {
					outcomes[j.index] = r.processOne(src, j.line, j.index)
				}
			}()
		}

	feed:
		for i, line := range lines {
			select {
			case jobs <- job{index: i, line: line}:
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()

		r.logger.Debug("Concurrent classification completed",
			logging.F("source", src.Name),
			logging.F("lines", len(lines)),
			logging.F("workers", r.workers))
	}

	var rows []Classified
	var faults []parsererror.Fault
	for _, out := range outcomes {
		faults = append(faults, out.faults...)
		if out.ok {
			rows = append(rows, out.row)
		}
	}
	return rows, faults
}

// processOne decodes and classifies a single line.
func (r *Runner) processOne(src *Source, line Line, index int) rowOutcome {
	fields, err := src.Template.Decode(line.Text)
	if err != nil {
		kind := parsererror.FaultLineShapeMismatch
		if _, isShape := err.(*format.ShapeError); !isShape {
			kind = parsererror.FaultSourceUnreadable
		}
		return rowOutcome{
			index: index,
			faults: []parsererror.Fault{{
				Source:  src.Name,
				Line:    line.Number,
				Kind:    kind,
				Message: err.Error(),
			}},
		}
	}

	row, faults := r.engine.Classify(src.Name, line.Number, fields)
	return rowOutcome{index: index, row: row, faults: faults, ok: true}
}
