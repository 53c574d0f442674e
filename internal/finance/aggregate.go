package finance

import (
	"iter"

	"github.com/shopspring/decimal"

	"github.com/starford/tally/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Totals are the aggregates of a set of transactions. They are recomputed on
// every call and never stored.
type Totals struct {
	Total   decimal.Decimal `json:"total"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	// SavingsPct is (income-expense)/income*100 rounded to one decimal, or 0
	// without income.
	SavingsPct decimal.Decimal `json:"savingsPct"`
	Count      int             `json:"count"`
}

// Summarize folds txs into Totals. Expense is reported as a positive number.
func Summarize(txs iter.Seq[models.Transaction]) Totals {
	var tot Totals
	var spent decimal.Decimal
	for tx := range txs {
		tot.Count++
		tot.Total = tot.Total.Add(tx.Amount)
		switch tx.Type {
		case models.Income:
			tot.Income = tot.Income.Add(tx.Amount)
		case models.Expense:
			spent = spent.Add(tx.Amount)
		}
	}
	tot.Expense = spent.Abs()
	tot.SavingsPct = SavingsPct(tot.Income, tot.Expense)
	return tot
}

// SavingsPct returns the share of income that was not spent, in percent.
func SavingsPct(income, expense decimal.Decimal) decimal.Decimal {
	if !income.IsPositive() {
		return decimal.Zero
	}
	return income.Sub(expense).Div(income).Mul(hundred).Round(1)
}

// Direction is the sign of a trend.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// Trend compares a value with the same value one period earlier.
type Trend struct {
	Pct       decimal.Decimal `json:"pct"`
	Direction Direction       `json:"direction"`
}

// TrendOf returns (cur-prev)/prev*100 rounded to one decimal. Without a
// previous value the trend is 0 and stable.
func TrendOf(cur, prev decimal.Decimal) Trend {
	if prev.IsZero() {
		return Trend{Pct: decimal.Zero, Direction: Stable}
	}
	pct := cur.Sub(prev).Div(prev).Mul(hundred).Round(1)
	switch pct.Sign() {
	case 1:
		return Trend{Pct: pct, Direction: Increasing}
	case -1:
		return Trend{Pct: pct, Direction: Decreasing}
	default:
		return Trend{Pct: pct, Direction: Stable}
	}
}

// BudgetStatus grades how much of the monthly budget is used.
type BudgetStatus string

const (
	BudgetOK      BudgetStatus = "ok"
	BudgetWarning BudgetStatus = "warning"
	BudgetDanger  BudgetStatus = "danger"
)

var (
	warnAbove   = decimal.NewFromInt(70)
	dangerAbove = decimal.NewFromInt(90)
)

// Budget is the monthly budget measured against current spending.
type Budget struct {
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	UsedPct   decimal.Decimal `json:"usedPct"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    BudgetStatus    `json:"status"`
}

// BudgetOf measures spent against limit. A zero limit means no budget is
// set: nothing is used and the status stays ok.
func BudgetOf(limit, spent decimal.Decimal) Budget {
	b := Budget{Limit: limit, Spent: spent, UsedPct: decimal.Zero, Remaining: decimal.Zero, Status: BudgetOK}
	if !limit.IsPositive() {
		return b
	}
	b.UsedPct = spent.Div(limit).Mul(hundred).Round(1)
	if rem := limit.Sub(spent); rem.IsPositive() {
		b.Remaining = rem
	}
	switch {
	case b.UsedPct.GreaterThan(dangerAbove):
		b.Status = BudgetDanger
	case b.UsedPct.GreaterThan(warnAbove):
		b.Status = BudgetWarning
	}
	return b
}

// Summary is everything the dashboard shows about the current month.
type Summary struct {
	Totals
	IncomeTrend  Trend               `json:"incomeTrend"`
	ExpenseTrend Trend               `json:"expenseTrend"`
	SavingsTrend Direction           `json:"savingsTrend"`
	Budget       Budget              `json:"budget"`
	LastMonth    models.PeriodTotals `json:"lastMonth"`
}

func summarize(txs iter.Seq[models.Transaction], settings models.FinanceSettings) Summary {
	tot := Summarize(txs)
	in := TrendOf(tot.Income, settings.LastMonth.Income)
	return Summary{
		Totals:       tot,
		IncomeTrend:  in,
		ExpenseTrend: TrendOf(tot.Expense, settings.LastMonth.Expense),
		SavingsTrend: in.Direction,
		Budget:       BudgetOf(settings.MonthlyBudget, tot.Expense),
		LastMonth:    settings.LastMonth,
	}
}
