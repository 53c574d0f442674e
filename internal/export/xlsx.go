package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/starford/tally/internal/models"
)

// SheetName is the worksheet WriteXLSX fills.
const SheetName = "Transactions"

var colWidths = map[string]float64{"A": 12, "B": 10, "C": 16, "D": 36, "E": 12}

// WriteXLSX writes txs as a single-sheet workbook with the CSV columns.
// Amounts are stored as numbers so spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, txs []models.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	for i, h := range Header {
		if err := f.SetCellValue(SheetName, fmt.Sprintf("%c1", 'A'+i), h); err != nil {
			return fmt.Errorf("export: header: %w", err)
		}
	}
	for idx, tx := range txs {
		r := idx + 2
		amount, _ := tx.Amount.Abs().Round(2).Float64()
		values := []any{tx.Date.String(), string(tx.Type), category(tx), tx.Description, amount}
		for i, v := range values {
			if err := f.SetCellValue(SheetName, fmt.Sprintf("%c%d", 'A'+i, r), v); err != nil {
				return fmt.Errorf("export: row %d: %w", r, err)
			}
		}
	}
	for col, width := range colWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
