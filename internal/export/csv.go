// Package export renders ledger data for external consumers, the CSV
// download and the Google Sheets backup.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"budget/internal/core"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"id", "date", "type", "category", "amount", "note", "goal_id"}

// WriteCSV streams the transactions as CSV. Amounts use the exact
// decimal encoding so a re-import round-trips without loss.
func WriteCSV(w io.Writer, items []core.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, t := range items {
		goalID := ""
		if t.GoalID != 0 {
			goalID = strconv.FormatInt(t.GoalID, 10)
		}
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Date.String(),
			string(t.Type),
			t.Category,
			t.Amount.Decimal(),
			t.Note,
			goalID,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
