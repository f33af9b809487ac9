// Package inspect implements the inspect command: show a CSV file's columns
// and sample rows, and suggest a format string for settings.yaml.
package inspect

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var rowCount int

// Cmd is the inspect command.
var Cmd = &cobra.Command{
	Use:   "inspect <file.csv>",
	Short: "Show CSV columns and sample data to help build a format string.",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	Cmd.Flags().IntVarP(&rowCount, "rows", "n", 5, "Number of sample rows to show")
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for len(rows) <= rowCount {
		record, err := reader.Read()
		if err != nil {
			break
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		fmt.Println("File appears to be empty.")
		return nil
	}

	header := rows[0]
	data := rows[1:]

	fmt.Printf("Inspecting: %s\n\n", path)
	fmt.Println("Detected columns:")
	for i, col := range header {
		fmt.Printf("  [%d] %s\n", i, col)
	}

	fmt.Printf("\nSample data (first %d rows):\n", len(data))
	for n, row := range data {
		fmt.Printf("  Row %d:\n", n+1)
		for i, val := range row {
			name := fmt.Sprintf("Col %d", i)
			if i < len(header) {
				name = header[i]
			}
			if len(val) > 50 {
				val = val[:50] + "..."
			}
			fmt.Printf("    [%d] %s: %s\n", i, name, val)
		}
	}

	suggestFormat(header, data)
	return nil
}

// suggestFormat guesses which column holds the date, description and amount
// and prints a format string plus sign-convention advice.
func suggestFormat(header []string, data [][]string) {
	dateCol, dateLayout := detectDateColumn(data)
	amountCol := detectAmountColumn(data, dateCol)
	descCol := detectDescriptionColumn(header, dateCol, amountCol)

	if dateCol < 0 || amountCol < 0 || descCol < 0 {
		fmt.Println("\nCould not auto-detect a format. Example:")
		fmt.Printf("  format: \"{date:%%m/%%d/%%Y},{description},{amount}\"\n")
		return
	}

	cols := make([]string, len(header))
	for i := range cols {
		switch i {
		case dateCol:
			cols[i] = fmt.Sprintf("{date:%s}", dateLayout)
		case descCol:
			cols[i] = "{description}"
		case amountCol:
			cols[i] = "{amount}"
		default:
			cols[i] = "{_}"
		}
	}
	fmt.Printf("\nSuggested format string:\n  format: %q\n", strings.Join(cols, ","))

	negatives := 0
	total := 0
	for _, row := range data {
		if amountCol >= len(row) {
			continue
		}
		num, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(row[amountCol]), ",", ""))
		if err != nil {
			continue
		}
		total++
		if num.IsNegative() {
			negatives++
		}
	}
	if total > 0 && negatives*2 > total {
		fmt.Println("\nMost sample amounts are negative; this export likely stores")
		fmt.Println("expenses as negative values. Use {-amount} to flip the sign,")
		fmt.Println("or {+amount} for mixed-sign sources.")
	}
}

// dateLayouts are candidate layouts tried against sample values, in
// strftime form as used by format strings.
var dateLayouts = []struct {
	strftime string
	layout   string
}{
	{"%Y-%m-%d", "2006-01-02"},
	{"%m/%d/%Y", "01/02/2006"},
	{"%d/%m/%Y", "02/01/2006"},
	{"%d.%m.%Y", "02.01.2006"},
}

func detectDateColumn(data [][]string) (int, string) {
	if len(data) == 0 {
		return -1, ""
	}
	for col := range data[0] {
		for _, candidate := range dateLayouts {
			ok := true
			for _, row := range data {
				if col >= len(row) {
					ok = false
					break
				}
				if _, err := time.Parse(candidate.layout, strings.TrimSpace(row[col])); err != nil {
					ok = false
					break
				}
			}
			if ok {
				return col, candidate.strftime
			}
		}
	}
	return -1, ""
}

func detectAmountColumn(data [][]string, skip int) int {
	if len(data) == 0 {
		return -1
	}
	for col := range data[0] {
		if col == skip {
			continue
		}
		ok := true
		for _, row := range data {
			if col >= len(row) {
				ok = false
				break
			}
			val := strings.ReplaceAll(strings.TrimSpace(row[col]), ",", "")
			if _, err := decimal.NewFromString(val); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return col
		}
	}
	return -1
}

func detectDescriptionColumn(header []string, dateCol, amountCol int) int {
	for i, name := range header {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "desc") || strings.Contains(lower, "merchant") ||
			strings.Contains(lower, "payee") || strings.Contains(lower, "name") {
			return i
		}
	}
	// Fall back to the first column that is neither date nor amount.
	for i := range header {
		if i != dateCol && i != amountCol {
			return i
		}
	}
	return -1
}
