package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/models"
)

// CreateTransactionRequest is the request body for recording a transaction.
type CreateTransactionRequest = models.TransactionDraft

// UpdateTransactionRequest changes selected fields of a transaction.
type UpdateTransactionRequest = models.TransactionPatch

// TransactionListResponse wraps a filtered transaction listing.
type TransactionListResponse struct {
	Transactions []models.Transaction `json:"transactions" validate:"required"`
	Summary      finance.Summary      `json:"summary" validate:"required"`
}

// CategoriesResponse lists the categories offered for new transactions.
type CategoriesResponse struct {
	Categories []string `json:"categories" validate:"required"`
}

// BudgetRequest sets the monthly budget.
type BudgetRequest struct {
	MonthlyBudget *decimal.Decimal `json:"monthlyBudget" example:"2000" validate:"required"`
}

// Validate requires the budget to be present.
func (r BudgetRequest) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&r,
		validation.Field(&r.MonthlyBudget, validation.NotNil),
	))
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest = models.NoteDraft

// UpdateNoteRequest edits a note's title or body.
type UpdateNoteRequest = models.NotePatch

// NoteListResponse wraps a note listing.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// TagsResponse lists every note tag in use.
type TagsResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// CreateTaskRequest is the request body for adding a task.
type CreateTaskRequest = models.TaskDraft

// UpdateTaskRequest edits a task's text or completion flag.
type UpdateTaskRequest = models.TaskPatch

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks     []models.Task `json:"tasks" validate:"required"`
	Remaining int           `json:"remaining" example:"3" validate:"required"`
}

// ClearedResponse reports how many tasks were removed.
type ClearedResponse struct {
	Cleared int `json:"cleared" example:"2" validate:"required"`
}
