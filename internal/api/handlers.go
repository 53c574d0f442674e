package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/export"
	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
	now func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func recordID(r *http.Request) models.ID {
	return models.ID(chi.URLParam(r, "id"))
}

// queryValue treats "all" like an absent filter.
func queryValue(r *http.Request, key string) string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

func transactionQuery(r *http.Request) finance.Query {
	return finance.Query{
		Type:     models.TxType(strings.ToLower(queryValue(r, "type"))),
		Category: queryValue(r, "category"),
		Sort:     finance.Sort(queryValue(r, "sort")),
	}
}

// ListTransactions handles GET /api/transactions.
//
//	@Summary		List transactions with optional filtering and sorting
//	@Tags			transactions
//	@Produce		json
//	@Param			type		query		string	false	"Filter by type"	Enums(income, expense)
//	@Param			category	query		string	false	"Filter by category"
//	@Param			sort		query		string	false	"Sort order"	Enums(date_desc, date_asc, amount_desc, amount_asc)
//	@Success		200			{object}	TransactionListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions [get]
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.Finance.List(transactionQuery(r))
	if err != nil {
		writeError(w, "list transactions", err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, TransactionListResponse{
		Transactions: txs,
		Summary:      h.svc.Finance.Summary(),
	})
}

// CreateTransaction handles POST /api/transactions. The transaction is
// only kept if it reaches storage.
//
//	@Summary		Record a transaction
//	@Tags			transactions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTransactionRequest	true	"Transaction to record"
//	@Success		201		{object}	models.Transaction
//	@Failure		400		{object}	errResponse
//	@Header			201		{string}	Warning	"set while the last save failed"
//	@Security		BearerAuth
//	@Router			/transactions [post]
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.Finance.AddConfirmed(r.Context(), req)
	if err != nil {
		writeError(w, "create transaction", err)
		return
	}
	if saveErr := h.svc.Finance.Ledger().Err(); saveErr != nil {
		setStorageWarning(w, saveErr)
	}
	writeJSON(w, http.StatusCreated, tx)
}

// GetTransaction handles GET /api/transactions/{id}.
//
//	@Summary		Get a single transaction
//	@Tags			transactions
//	@Produce		json
//	@Param			id	path		string	true	"Transaction id"
//	@Success		200	{object}	models.Transaction
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions/{id} [get]
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.svc.Finance.Get(recordID(r))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// UpdateTransaction handles PATCH /api/transactions/{id}.
//
//	@Summary		Change fields of a transaction
//	@Tags			transactions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Transaction id"
//	@Param			body	body		UpdateTransactionRequest	true	"Fields to change"
//	@Success		200		{object}	models.Transaction
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions/{id} [patch]
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.Finance.Update(recordID(r), req)
	if err != nil {
		writeError(w, "update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}. Deleting an
// unknown id succeeds.
//
//	@Summary		Delete a transaction
//	@Tags			transactions
//	@Param			id	path	string	true	"Transaction id"
//	@Success		204	"Transaction deleted"
//	@Security		BearerAuth
//	@Router			/transactions/{id} [delete]
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	h.svc.Finance.Remove(recordID(r))
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/transactions/summary.
//
//	@Summary		Totals, trends and budget usage
//	@Tags			transactions
//	@Produce		json
//	@Success		200	{object}	finance.Summary
//	@Security		BearerAuth
//	@Router			/transactions/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Finance.Summary())
}

// Categories handles GET /api/transactions/categories.
//
//	@Summary		Categories in use, or the defaults
//	@Tags			transactions
//	@Produce		json
//	@Success		200	{object}	CategoriesResponse
//	@Security		BearerAuth
//	@Router			/transactions/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: h.svc.Finance.Categories()})
}

func (h *Handler) exportName(ext string) string {
	return fmt.Sprintf("attachment; filename=\"transactions_%s.%s\"", h.now().Format(time.DateOnly), ext)
}

// ExportCSV handles GET /api/transactions/export.csv. Filters are the same as
// for the listing.
//
//	@Summary		Export transactions as CSV
//	@Tags			transactions
//	@Produce		text/csv
//	@Success		200	{string}	string
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions/export.csv [get]
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.Finance.List(transactionQuery(r))
	if err != nil {
		writeError(w, "export csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", h.exportName("csv"))
	_, _ = w.Write([]byte(export.ToCSV(txs)))
}

// ExportXLSX handles GET /api/transactions/export.xlsx.
//
//	@Summary		Export transactions as an Excel workbook
//	@Tags			transactions
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success		200	{file}		file
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions/export.xlsx [get]
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.Finance.List(transactionQuery(r))
	if err != nil {
		writeError(w, "export xlsx", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", h.exportName("xlsx"))
	if err := export.WriteXLSX(w, txs); err != nil {
		writeError(w, "export xlsx", err)
	}
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Finance settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.FinanceSettings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Finance.Settings())
}

// SetBudget handles PUT /api/settings/budget.
//
//	@Summary		Set the monthly budget
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BudgetRequest	true	"New budget"
//	@Success		200		{object}	finance.Summary
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/budget [put]
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "set budget", err)
		return
	}
	if err := h.svc.Finance.SetBudget(r.Context(), *req.MonthlyBudget); err != nil {
		writeError(w, "set budget", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Finance.Summary())
}
