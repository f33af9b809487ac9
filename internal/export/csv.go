// Package export writes classified transactions to CSV in a standardized
// column layout for downstream reporting.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/tallyhq/tally/internal/engine"
	"github.com/tallyhq/tally/internal/logging"
)

// Row is the output CSV schema. Tags and views are semicolon-joined so the
// file stays one row per transaction.
type Row struct {
	Date        string `csv:"Date"`
	Description string `csv:"Description"`
	Amount      string `csv:"Amount"`
	Merchant    string `csv:"Merchant"`
	Category    string `csv:"Category"`
	Subcategory string `csv:"Subcategory"`
	Tags        string `csv:"Tags"`
	Views       string `csv:"Views"`
	Rule        string `csv:"Rule"`
	Source      string `csv:"Source"`
	Line        int    `csv:"Line"`
}

// WriteCSV writes the classified rows to path, creating or truncating it.
func WriteCSV(path string, rows []engine.Classified, log logging.Logger) error {
	out := make([]Row, 0, len(rows))
	for i := range rows {
		tx := &rows[i]
		out = append(out, Row{
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Amount:      tx.Amount.StringFixed(2),
			Merchant:    tx.Merchant,
			Category:    tx.Category,
			Subcategory: tx.Subcategory,
			Tags:        strings.Join(tx.Tags.Sorted(), ";"),
			Views:       strings.Join(tx.Views, ";"),
			Rule:        tx.Match.RuleName,
			Source:      tx.Source,
			Line:        tx.Line,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("Failed to close output file")
		}
	}()

	if err := gocsv.MarshalFile(&out, f); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}

	log.Info("Wrote classified transactions",
		logging.F("file", path),
		logging.F("rows", len(out)))
	return nil
}
