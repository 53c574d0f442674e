package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/starford/tally/internal/models"
)

func sample() []models.Transaction {
	return []models.Transaction{
		{
			ID: "1", Description: `Dinner at "Joe's"`, Amount: decimal.RequireFromString("-42.5"),
			Category: "food", Date: models.NewDate(2024, 1, 3), Type: models.Expense,
		},
		{
			ID: "2", Description: "Salary, January", Amount: decimal.RequireFromString("3000"),
			Date: models.NewDate(2024, 1, 1), Type: models.Income,
		},
	}
}

func TestToCSV(t *testing.T) {
	got := ToCSV(sample())
	want := "Date,Type,Category,Description,Amount\n" +
		"2024-01-03,expense,food,\"Dinner at \"\"Joe's\"\"\",42.50\n" +
		"2024-01-01,income,Uncategorized,\"Salary, January\",3000.00\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestToCSV_Empty(t *testing.T) {
	if got := ToCSV(nil); got != "Date,Type,Category,Description,Amount\n" {
		t.Errorf("got %q", got)
	}
}

func TestToCSV_LineCount(t *testing.T) {
	txs := sample()
	lines := strings.Split(strings.TrimSuffix(ToCSV(txs), "\n"), "\n")
	if len(lines) != len(txs)+1 {
		t.Errorf("got %d lines", len(lines))
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sample()); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		t.Errorf("header: %v", rows[0])
	}
	if rows[1][3] != `Dinner at "Joe's"` || rows[1][4] != "42.5" {
		t.Errorf("row 1: %v", rows[1])
	}
	if rows[2][2] != "Uncategorized" {
		t.Errorf("row 2: %v", rows[2])
	}
}
