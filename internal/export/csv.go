// Package export renders transactions for spreadsheets.
package export

import (
	"strings"

	"github.com/starford/tally/internal/models"
)

// Header is the first line of every CSV export.
var Header = []string{"Date", "Type", "Category", "Description", "Amount"}

const uncategorized = "Uncategorized"

// ToCSV renders txs one per line after the header, in the given order. The
// description is always quoted; amounts are absolute with two decimals.
func ToCSV(txs []models.Transaction) string {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	b.WriteByte('\n')
	for _, tx := range txs {
		b.WriteString(strings.Join(row(tx), ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func row(tx models.Transaction) []string {
	return []string{
		tx.Date.String(),
		string(tx.Type),
		category(tx),
		`"` + strings.ReplaceAll(tx.Description, `"`, `""`) + `"`,
		tx.Amount.Abs().StringFixed(2),
	}
}

func category(tx models.Transaction) string {
	if strings.TrimSpace(tx.Category) == "" {
		return uncategorized
	}
	return tx.Category
}
