package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/notes"
	"github.com/starford/tally/internal/storage"
	"github.com/starford/tally/internal/tasks"
	"github.com/starford/tally/internal/testutil"
)

var testNow = time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)

// testEnv sets up in-memory ledgers, a service and a router for testing.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithStore(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithStore(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*Service, http.Handler, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	logger := testutil.Logger()
	clock := func() time.Time { return testNow }

	svc := &Service{
		Finance: finance.Open(context.Background(), store, finance.WithLogger(logger), finance.WithClock(clock)),
		Notes:   notes.Open(context.Background(), store, logger, clock),
		Tasks:   tasks.Open(context.Background(), store, logger, clock),
	}
	t.Cleanup(func() {
		svc.Finance.Close()
		svc.Notes.Close()
		svc.Tasks.Close()
	})
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler), store
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, w.Body.String())
	}
	return v
}

func TestCreateAndListTransactions(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/transactions", map[string]any{
		"description": "Coffee", "amount": 4.50, "type": "expense", "category": "food", "date": "2024-01-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Transaction](t, w)
	if !created.Amount.Equal(decimal.RequireFromString("-4.5")) || created.ID == "" {
		t.Errorf("created = %+v", created)
	}

	do(t, router, http.MethodPost, "/transactions", map[string]any{
		"description": "Salary", "amount": "1000", "type": "income",
	})

	w = do(t, router, http.MethodGet, "/transactions?type=expense", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[TransactionListResponse](t, w)
	if len(list.Transactions) != 1 || list.Transactions[0].Description != "Coffee" {
		t.Errorf("filtered list = %+v", list.Transactions)
	}
	if !list.Summary.Expense.Equal(decimal.RequireFromString("4.5")) || !list.Summary.Income.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("summary = %+v", list.Summary.Totals)
	}

	w = do(t, router, http.MethodGet, "/transactions?type=all&category=all", nil)
	if got := decode[TransactionListResponse](t, w); len(got.Transactions) != 2 {
		t.Errorf("\"all\" filters should match everything, got %d", len(got.Transactions))
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"blank description", map[string]any{"description": " ", "amount": 1, "type": "expense"}},
		{"zero amount", map[string]any{"description": "x", "amount": 0, "type": "expense"}},
		{"text amount", map[string]any{"description": "x", "amount": "abc", "type": "expense"}},
		{"bad type", map[string]any{"description": "x", "amount": 1, "type": "gift"}},
		{"future date", map[string]any{"description": "x", "amount": 1, "type": "income", "date": "2024-02-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/transactions", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d", w.Code)
	}
}

func TestCreateTransaction_StorageDown(t *testing.T) {
	svc, router, store := testEnvWithStore(t, false, "", nil)
	store.SetFailSave(errors.New("disk full"))

	rent := map[string]any{"description": "Rent", "amount": 900, "type": "expense"}
	w := do(t, router, http.MethodPost, "/transactions", rent)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.Finance.Ledger().Len() != 1 {
		t.Error("unsaved transaction should stay in memory")
	}

	if err := svc.Finance.Ledger().Flush(context.Background()); err == nil {
		t.Fatal("flush should report the failed save")
	}
	if err := svc.Ready(); err == nil {
		t.Error("service should not be ready after a failed save")
	}

	w = do(t, router, http.MethodPost, "/transactions", rent)
	if w.Code != http.StatusCreated {
		t.Fatalf("second status = %d", w.Code)
	}
	if warn := w.Header().Get("Warning"); !strings.Contains(warn, "disk full") {
		t.Errorf("Warning header = %q", warn)
	}
	if svc.Finance.Ledger().Len() != 2 {
		t.Errorf("len = %d, want 2", svc.Finance.Ledger().Len())
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	svc, router := testEnv(t, "")
	tx, err := svc.Finance.Add(models.TransactionDraft{Description: "Lunch", Amount: "12", Type: models.Expense})
	if err != nil {
		t.Fatal(err)
	}
	path := "/transactions/" + tx.ID.String()

	w := do(t, router, http.MethodPatch, path, map[string]any{"type": "income"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[models.Transaction](t, w); !got.Amount.Equal(decimal.NewFromInt(12)) {
		t.Errorf("sign not flipped: %s", got.Amount)
	}

	if w := do(t, router, http.MethodPatch, path, map[string]any{"amount": -5}); w.Code != http.StatusBadRequest {
		t.Errorf("negative amount patch = %d", w.Code)
	}
	if w := do(t, router, http.MethodPatch, "/transactions/ghost", map[string]any{"description": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d", w.Code)
	}

	if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Errorf("get = %d", w.Code)
	}
	for range 2 {
		if w := do(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
			t.Errorf("delete = %d", w.Code)
		}
	}
	if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestSummaryAndBudget(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.Finance.Add(models.TransactionDraft{Description: "Salary", Amount: "1000", Type: models.Income})
	svc.Finance.Add(models.TransactionDraft{Description: "Rent", Amount: "400", Type: models.Expense})

	w := do(t, router, http.MethodPut, "/settings/budget", map[string]any{"monthlyBudget": 500})
	if w.Code != http.StatusOK {
		t.Fatalf("set budget = %d, body = %s", w.Code, w.Body.String())
	}
	sum := decode[finance.Summary](t, w)
	if sum.Budget.Status != finance.BudgetWarning || !sum.Budget.UsedPct.Equal(decimal.NewFromInt(80)) {
		t.Errorf("budget = %+v", sum.Budget)
	}
	if !sum.SavingsPct.Equal(decimal.NewFromInt(60)) {
		t.Errorf("savings = %s", sum.SavingsPct)
	}

	if w := do(t, router, http.MethodPut, "/settings/budget", map[string]any{"monthlyBudget": -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative budget = %d", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/settings/budget", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing budget = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/settings", nil)
	if got := decode[models.FinanceSettings](t, w); !got.MonthlyBudget.Equal(decimal.NewFromInt(500)) {
		t.Errorf("settings = %+v", got)
	}
	if w := do(t, router, http.MethodGet, "/transactions/summary", nil); w.Code != http.StatusOK {
		t.Errorf("summary = %d", w.Code)
	}
}

func TestCategories(t *testing.T) {
	svc, router := testEnv(t, "")

	got := decode[CategoriesResponse](t, do(t, router, http.MethodGet, "/transactions/categories", nil))
	if len(got.Categories) != len(finance.DefaultCategories) {
		t.Errorf("defaults = %v", got.Categories)
	}

	svc.Finance.Add(models.TransactionDraft{Description: "Bus", Amount: "2", Type: models.Expense, Category: "Transit"})
	got = decode[CategoriesResponse](t, do(t, router, http.MethodGet, "/transactions/categories", nil))
	if len(got.Categories) != 1 || got.Categories[0] != "transit" {
		t.Errorf("in use = %v", got.Categories)
	}
}

func TestListTransactions_BadSort(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/transactions?sort=sideways", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestExportCSV(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.Finance.Add(models.TransactionDraft{Description: `Say "hi"`, Amount: "3", Type: models.Expense, Date: "2024-01-05"})

	w := do(t, router, http.MethodGet, "/transactions/export.csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions_") {
		t.Errorf("disposition = %q", cd)
	}
	want := "Date,Type,Category,Description,Amount\n2024-01-05,expense,Uncategorized,\"Say \"\"hi\"\"\",3.00\n"
	if w.Body.String() != want {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestExportXLSX(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.Finance.Add(models.TransactionDraft{Description: "Book", Amount: "15", Type: models.Expense, Category: "fun"})

	w := do(t, router, http.MethodGet, "/transactions/export.xlsx", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}
}

func TestNotesFlow(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"title": "Groceries", "body": "milk and eggs #shopping"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	note := decode[models.Note](t, w)

	do(t, router, http.MethodPost, "/notes", map[string]string{"title": "Ideas", "body": strings.Repeat("x", 200)})

	list := decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes", nil))
	if list.Total != 2 {
		t.Fatalf("total = %d", list.Total)
	}
	if ex := list.Notes[0].Excerpt; len([]rune(ex)) != 153 || !strings.HasSuffix(ex, "...") {
		t.Errorf("excerpt = %q", ex)
	}

	list = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?tag=shopping", nil))
	if list.Total != 1 || list.Notes[0].ID != note.ID {
		t.Errorf("tag filter = %+v", list.Notes)
	}
	list = decode[NoteListResponse](t, do(t, router, http.MethodGet, "/notes?q=EGGS", nil))
	if list.Total != 1 {
		t.Errorf("text filter = %+v", list.Notes)
	}

	tags := decode[TagsResponse](t, do(t, router, http.MethodGet, "/notes/tags", nil))
	if len(tags.Tags) != 1 || tags.Tags[0] != "shopping" {
		t.Errorf("tags = %v", tags.Tags)
	}

	path := "/notes/" + note.ID.String()
	w = do(t, router, http.MethodPatch, path, map[string]string{"title": "Shopping list"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d", w.Code)
	}
	if got := decode[models.Note](t, w); got.Title != "Shopping list" || got.Body != note.Body {
		t.Errorf("patched = %+v", got)
	}
	if w := do(t, router, http.MethodPatch, path, map[string]string{"title": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d", w.Code)
	}

	if w := do(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestCreateNote_MissingTitle(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/notes", map[string]string{"body": "orphan"}); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestTasksFlow(t *testing.T) {
	_, router := testEnv(t, "")

	var ids []models.ID
	for _, text := range []string{"buy milk", "call mom", "pay rent"} {
		w := do(t, router, http.MethodPost, "/tasks", map[string]string{"text": text})
		if w.Code != http.StatusCreated {
			t.Fatalf("create = %d", w.Code)
		}
		ids = append(ids, decode[models.Task](t, w).ID)
	}

	for _, id := range ids[:2] {
		if w := do(t, router, http.MethodPatch, "/tasks/"+id.String(), map[string]bool{"completed": true}); w.Code != http.StatusOK {
			t.Fatalf("complete = %d", w.Code)
		}
	}

	list := decode[TaskListResponse](t, do(t, router, http.MethodGet, "/tasks?show=active", nil))
	if len(list.Tasks) != 1 || list.Remaining != 1 {
		t.Errorf("active = %+v", list)
	}
	if w := do(t, router, http.MethodGet, "/tasks?show=someday", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad filter = %d", w.Code)
	}

	cleared := decode[ClearedResponse](t, do(t, router, http.MethodPost, "/tasks/clear-completed", nil))
	if cleared.Cleared != 2 {
		t.Errorf("cleared = %d", cleared.Cleared)
	}
	list = decode[TaskListResponse](t, do(t, router, http.MethodGet, "/tasks", nil))
	if len(list.Tasks) != 1 || list.Tasks[0].ID != ids[2] {
		t.Errorf("after clear = %+v", list.Tasks)
	}

	if w := do(t, router, http.MethodPatch, "/tasks/ghost", map[string]bool{"completed": true}); w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/tasks/"+ids[2].String(), nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"text": "auth"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithStore(t, true, "secret", sseStub)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithStore(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestServiceReady(t *testing.T) {
	svc, _, store := testEnvWithStore(t, false, "", nil)
	if err := svc.Ready(); err != nil {
		t.Fatalf("fresh service not ready: %v", err)
	}

	store.SetFailSave(errors.New("read-only"))
	svc.Tasks.Add(models.TaskDraft{Text: "x"})
	_ = svc.Tasks.Flush(context.Background())
	if err := svc.Ready(); err == nil {
		t.Error("expected a readiness error after a failed save")
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router, _ := testEnvWithStore(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("query token on GET should be accepted")
	}

	req = httptest.NewRequest(http.MethodPost, "/tasks?access_token=tok", strings.NewReader(`{"text":"x"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token on POST = %d, want 401", w.Code)
	}
}
