// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tally's ledgers as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"

	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/notes"
	"github.com/starford/tally/internal/tasks"
)

const contractURI = "tally://data-contract"

// Server wraps the MCP server with tally tools.
type Server struct {
	mcp      *server.MCPServer
	finance  *finance.Tracker
	notes    *notes.Book
	tasks    *tasks.List
	currency string
}

// New creates a new MCP server with all tally tools registered. Amounts in
// text answers are formatted in currency (an ISO 4217 code).
func New(f *finance.Tracker, n *notes.Book, t *tasks.List, currency string) *Server {
	s := &Server{finance: f, notes: n, tasks: t, currency: currency}

	s.mcp = server.NewMCPServer(
		"Tally",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("add_transaction",
		mcp.WithDescription("Record an income or expense. The amount is always positive; the type decides the sign."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What the money was for")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Positive amount")),
		mcp.WithString("type", mcp.Required(), mcp.Enum(string(models.Income), string(models.Expense))),
		mcp.WithString("category", mcp.Description("Optional category, e.g. food")),
		mcp.WithString("date", mcp.Description("Optional YYYY-MM-DD date, defaults to today")),
	), s.addTransaction)

	s.mcp.AddTool(mcp.NewTool("list_transactions",
		mcp.WithDescription("List transactions as JSON, optionally filtered and sorted."),
		mcp.WithString("type", mcp.Enum(string(models.Income), string(models.Expense))),
		mcp.WithString("category", mcp.Description("Only this category (case-insensitive)")),
		mcp.WithString("sort", mcp.Enum(string(finance.SortDateDesc), string(finance.SortDateAsc),
			string(finance.SortAmountDesc), string(finance.SortAmountAsc))),
	), s.listTransactions)

	s.mcp.AddTool(mcp.NewTool("remove_transaction",
		mcp.WithDescription("Delete a transaction by id."),
		mcp.WithString("id", mcp.Required()),
	), s.removeTransaction)

	s.mcp.AddTool(mcp.NewTool("finance_summary",
		mcp.WithDescription("Totals, savings rate, trends against last month and budget usage for the current month."),
	), s.financeSummary)

	s.mcp.AddTool(mcp.NewTool("set_budget",
		mcp.WithDescription("Set the monthly budget. Zero removes it."),
		mcp.WithNumber("amount", mcp.Required(), mcp.Min(0)),
	), s.setBudget)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add a to-do item."),
		mcp.WithString("text", mcp.Required()),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks as JSON."),
		mcp.WithString("show", mcp.Enum(string(tasks.ShowAll), string(tasks.ShowActive), string(tasks.ShowCompleted))),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as done, or not done with completed=false."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithBoolean("completed", mcp.Description("Defaults to true")),
	), s.completeTask)

	s.mcp.AddTool(mcp.NewTool("clear_completed_tasks",
		mcp.WithDescription("Remove every completed task."),
	), s.clearCompletedTasks)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Create a note. Tags are written inline as #tag. Read the data contract first via "+
			"get_data_contract or the "+contractURI+" resource."),
		mcp.WithString("title", mcp.Required()),
		mcp.WithString("body", mcp.Description("Markdown body")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Find notes whose title or body contains the query, optionally limited to a tag."),
		mcp.WithString("query", mcp.Description("Case-insensitive text to look for")),
		mcp.WithString("tag", mcp.Description("Only notes with this tag")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full body of a note."),
		mcp.WithString("id", mcp.Required()),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("get_data_contract",
		mcp.WithDescription("Returns the rules every tally record follows."),
	), s.getDataContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Data Contract",
			mcp.WithResourceDescription("Field rules for transactions, notes and tasks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) addTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	amount, err := req.RequireFloat("amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tx, err := s.finance.AddConfirmed(ctx, models.TransactionDraft{
		Description: desc,
		Amount:      models.AmountInput(strconv.FormatFloat(amount, 'f', -1, 64)),
		Type:        models.TxType(typ),
		Category:    req.GetString("category", ""),
		Date:        req.GetString("date", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("recorded %s %s (%s) as %s",
		tx.Type, models.FormatMoney(tx.Amount.Abs(), s.currency), tx.Description, tx.ID)
	if saveErr := s.finance.Ledger().Err(); saveErr != nil {
		text += fmt.Sprintf("\nwarning: not saved yet: %v", saveErr)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listTransactions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	txs, err := s.finance.List(finance.Query{
		Type:     models.TxType(req.GetString("type", "")),
		Category: req.GetString("category", ""),
		Sort:     finance.Sort(req.GetString("sort", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return jsonResult(txs), nil
}

func (s *Server) removeTransaction(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.finance.Remove(models.ID(id)) {
		return mcp.NewToolResultText(fmt.Sprintf("nothing to remove: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", id)), nil
}

func (s *Server) financeSummary(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum := s.finance.Summary()
	money := func(d decimal.Decimal) string { return models.FormatMoney(d, s.currency) }

	var b strings.Builder
	fmt.Fprintf(&b, "Balance: %s\n", money(sum.Total))
	fmt.Fprintf(&b, "Income: %s (%s%% vs last month, %s)\n", money(sum.Income), sum.IncomeTrend.Pct, sum.IncomeTrend.Direction)
	fmt.Fprintf(&b, "Expenses: %s (%s%% vs last month, %s)\n", money(sum.Expense), sum.ExpenseTrend.Pct, sum.ExpenseTrend.Direction)
	fmt.Fprintf(&b, "Savings rate: %s%% (%s)\n", sum.SavingsPct, sum.SavingsTrend)
	fmt.Fprintf(&b, "Transactions: %d\n", sum.Count)
	if sum.Budget.Limit.IsPositive() {
		fmt.Fprintf(&b, "Budget: %s of %s used (%s%%, %s), %s left\n",
			money(sum.Budget.Spent), money(sum.Budget.Limit), sum.Budget.UsedPct, sum.Budget.Status, money(sum.Budget.Remaining))
	} else {
		b.WriteString("Budget: not set\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) setBudget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	amount, err := req.RequireFloat("amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	budget := decimal.NewFromFloat(amount)
	if err := s.finance.SetBudget(ctx, budget); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("monthly budget: %s", models.FormatMoney(budget, s.currency))), nil
}

func (s *Server) addTask(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.tasks.Add(models.TaskDraft{Text: text})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added task %s", t.ID)), nil
}

func (s *Server) listTasks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.tasks.Select(tasks.Show(req.GetString("show", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if items == nil {
		items = []models.Task{}
	}
	return jsonResult(items), nil
}

func (s *Server) completeTask(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.tasks.SetCompleted(models.ID(id), req.GetBool("completed", true))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state := "open"
	if t.Completed {
		state = "done"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s (%d remaining)", state, t.Text, s.tasks.Remaining())), nil
}

func (s *Server) clearCompletedTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.tasks.ClearCompleted()
	return mcp.NewToolResultText(fmt.Sprintf("cleared %d completed tasks", n)), nil
}

func (s *Server) addNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Add(models.NoteDraft{Title: title, Body: req.GetString("body", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created note %s", n.ID)), nil
}

type noteHit struct {
	ID      models.ID `json:"id"`
	Title   string    `json:"title"`
	Excerpt string    `json:"excerpt"`
	Tags    []string  `json:"tags"`
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	found := s.notes.Search(req.GetString("query", ""), req.GetString("tag", ""))
	hits := make([]noteHit, 0, len(found))
	for _, n := range found {
		tags := n.Tags
		if tags == nil {
			tags = []string{}
		}
		hits = append(hits, noteHit{ID: n.ID, Title: n.Title, Excerpt: n.Excerpt(), Tags: tags})
	}
	return jsonResult(hits), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := s.notes.Get(models.ID(id))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", n.Title, n.Body)), nil
}

func (s *Server) getDataContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DataContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DataContract,
		},
	}, nil
}
