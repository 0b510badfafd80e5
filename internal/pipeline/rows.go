package pipeline

import "github.com/SaurabhDhamne/AirStore/internal/ledger"

// NormalizeRows flattens entries into 4-column sheet rows in reading
// order: [date, name, amount, status]. Every field is its string
// representation; missing fields render as empty strings.
func NormalizeRows(entries []ledger.ExtractionEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Date,
			e.Name,
			e.Amount.String(),
			e.Status,
		})
	}
	return rows
}

// SumNumericAmounts totals the amounts that parse as numbers;
// non-numeric amounts are skipped.
func SumNumericAmounts(entries []ledger.ExtractionEntry) float64 {
	var total float64
	for _, e := range entries {
		if v, ok := e.Amount.Float(); ok {
			total += v
		}
	}
	return total
}
