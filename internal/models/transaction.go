package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/starford/tally/internal/apperr"
)

// TxType tells income from expense.
type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// Transaction is a single money movement. Amount is negative for expenses
// and positive for income.
type Transaction struct {
	ID          ID              `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        Date            `json:"date"`
	Type        TxType          `json:"type"`
}

// RecordID implements ledger.Record.
func (t Transaction) RecordID() ID { return t.ID }

// Validate checks a stored transaction: a known type and an amount whose sign
// matches it.
func (t Transaction) Validate() error {
	if err := validation.Validate(string(t.Type), validation.Required, validation.In(string(Income), string(Expense))); err != nil {
		return apperr.Invalid("type", err.Error())
	}
	switch {
	case t.Type == Income && !t.Amount.IsPositive():
		return apperr.Invalid("amount", "must be positive for income")
	case t.Type == Expense && !t.Amount.IsNegative():
		return apperr.Invalid("amount", "must be negative for an expense")
	}
	return nil
}

// AmountInput is amount text as typed by a user. JSON numbers and strings are
// both accepted; parsing happens during validation.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}
	*a = AmountInput(n.String())
	return nil
}

// TransactionDraft is a transaction before the ledger has assigned it an id.
type TransactionDraft struct {
	Description string      `json:"description"`
	Amount      AmountInput `json:"amount"`
	Type        TxType      `json:"type"`
	Category    string      `json:"category"`
	// Date defaults to today when empty.
	Date string `json:"date"`
}

// Build validates the draft and returns the stored form. The sign of Amount
// follows Type regardless of what was typed.
func (d TransactionDraft) Build(id ID, now time.Time) (Transaction, error) {
	desc := strings.TrimSpace(d.Description)
	typ := TxType(strings.ToLower(strings.TrimSpace(string(d.Type))))

	if err := validation.Validate(desc, validation.Required); err != nil {
		return Transaction{}, apperr.Invalid("description", err.Error())
	}
	amount, err := ParseAmount(string(d.Amount))
	if err != nil {
		return Transaction{}, err
	}
	if err := validation.Validate(string(typ), validation.Required, validation.In(string(Income), string(Expense))); err != nil {
		return Transaction{}, apperr.Invalid("type", err.Error())
	}

	today := DateOf(now)
	on := today
	if s := strings.TrimSpace(d.Date); s != "" {
		parsed, err := ParseDate(s)
		if err != nil {
			return Transaction{}, apperr.Invalid("date", err.Error())
		}
		on = parsed
	}
	if on.After(today) {
		return Transaction{}, apperr.Invalid("date", "cannot be in the future")
	}

	if typ == Expense {
		amount = amount.Neg()
	}
	return Transaction{
		ID:          id,
		Description: desc,
		Amount:      amount,
		Category:    strings.ToLower(strings.TrimSpace(d.Category)),
		Date:        on,
		Type:        typ,
	}, nil
}

// Bounds on typed amounts.
const (
	maxAmountIntDigits = 15
	maxAmountScale     = 10
)

// ParseAmount parses user amount text. The result is always strictly positive.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperr.Invalid("amount", "cannot be blank")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Invalid("amount", "must be a number")
	}
	if !v.IsPositive() {
		return decimal.Zero, apperr.Invalid("amount", "must be greater than zero")
	}
	if v.Exponent() < -maxAmountScale {
		return decimal.Zero, apperr.Invalid("amount", fmt.Sprintf("at most %d decimal places", maxAmountScale))
	}
	if v.NumDigits()+int(v.Exponent()) > maxAmountIntDigits {
		return decimal.Zero, apperr.Invalid("amount", "is too large")
	}
	return v, nil
}

// TransactionPatch changes selected fields of a transaction. Nil fields are
// left as they are.
type TransactionPatch struct {
	Description *string      `json:"description,omitempty"`
	Amount      *AmountInput `json:"amount,omitempty"`
	Type        *TxType      `json:"type,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Date        *string      `json:"date,omitempty"`
}

// Apply merges p into cur and re-validates the result like a new draft.
func (p TransactionPatch) Apply(cur Transaction, now time.Time) (Transaction, error) {
	d := TransactionDraft{
		Description: cur.Description,
		Amount:      AmountInput(cur.Amount.Abs().String()),
		Type:        cur.Type,
		Category:    cur.Category,
		Date:        cur.Date.String(),
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Date != nil {
		d.Date = *p.Date
	}
	return d.Build(cur.ID, now)
}
