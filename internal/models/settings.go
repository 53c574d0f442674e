package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodTotals freezes the aggregates of a closed month so the next month
// can be compared against it.
type PeriodTotals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	// Savings is the savings percentage of that month.
	Savings decimal.Decimal `json:"savings"`
}

// FinanceSettings is persisted next to the transaction snapshot.
type FinanceSettings struct {
	MonthlyBudget decimal.Decimal `json:"monthlyBudget"`
	LastMonth     PeriodTotals    `json:"lastMonthData"`
	LastAccess    time.Time       `json:"lastAccess"`
}
