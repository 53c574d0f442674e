package finance

import (
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

// Sort orders a transaction listing.
type Sort string

const (
	SortDateDesc   Sort = "date_desc"
	SortDateAsc    Sort = "date_asc"
	SortAmountDesc Sort = "amount_desc"
	SortAmountAsc  Sort = "amount_asc"
)

// Query selects and orders transactions. Zero fields match everything; an
// empty Sort keeps ledger order (newest added first).
type Query struct {
	Type     models.TxType
	Category string
	Sort     Sort
}

// Validate rejects unknown types and sort orders.
func (q Query) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&q,
		validation.Field(&q.Type, validation.In(models.Income, models.Expense)),
		validation.Field(&q.Sort, validation.In(SortDateDesc, SortDateAsc, SortAmountDesc, SortAmountAsc)),
	))
}

// Match reports whether tx passes the type and category filters.
func (q Query) Match(tx models.Transaction) bool {
	if q.Type != "" && tx.Type != q.Type {
		return false
	}
	if q.Category != "" && !strings.EqualFold(tx.Category, q.Category) {
		return false
	}
	return true
}

// order sorts txs in place. Amounts compare by magnitude; ties keep ledger
// order.
func (q Query) order(txs []models.Transaction) {
	var cmp func(a, b models.Transaction) int
	switch q.Sort {
	case SortDateDesc:
		cmp = func(a, b models.Transaction) int { return b.Date.Compare(a.Date) }
	case SortDateAsc:
		cmp = func(a, b models.Transaction) int { return a.Date.Compare(b.Date) }
	case SortAmountDesc:
		cmp = func(a, b models.Transaction) int { return b.Amount.Abs().Cmp(a.Amount.Abs()) }
	case SortAmountAsc:
		cmp = func(a, b models.Transaction) int { return a.Amount.Abs().Cmp(b.Amount.Abs()) }
	default:
		return
	}
	slices.SortStableFunc(txs, cmp)
}
