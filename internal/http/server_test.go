package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/export"
	"contabilidad/internal/log"
	"contabilidad/internal/services"
	"contabilidad/internal/storage"
)

type testAPI struct {
	t      *testing.T
	srv    *Server
	ledger *services.LedgerService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo, nil)
	svc := Services{
		Ledger:    ledger,
		Tags:      services.NewTagService(repo),
		Users:     services.NewUserService(repo),
		Reminders: services.NewReminderService(repo, ledger),
	}
	logger := log.New(log.Config{Output: io.Discard})
	srv := NewServer(Options{Addr: ":0", RateLimitPerMinute: 1000, CORSOrigins: []string{"https://app.example"}},
		svc, auth.NewTokenIssuer("test-secret", time.Hour), repo, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, srv: srv, ledger: ledger}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			a.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) register(username string) string {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "secret123",
	})
	if rr.Code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %s", username, rr.Code, rr.Body)
	}
	var tok tokenResponse
	decodeBody(a.t, rr, &tok)
	return tok.Token
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body)
	}
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := api.do(http.MethodGet, path, "", nil)
		expectStatus(t, rr, http.StatusOK)
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id", path)
		}
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

func TestReadyReportsDatabaseFailure(t *testing.T) {
	api := newTestAPI(t)
	api.srv.db = failingPinger{}
	expectStatus(t, api.do(http.MethodGet, "/readyz", "", nil), http.StatusServiceUnavailable)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ana")

	rr := api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "ana", "email": "other@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusBadRequest)
	var eb ErrorBody
	decodeBody(t, rr, &eb)
	if eb.Field != "username" {
		t.Errorf("duplicate username field = %q", eb.Field)
	}

	rr = api.do(http.MethodPost, "/auth/login", "", loginRequest{Login: "ana@example.com", Password: "secret123"})
	expectStatus(t, rr, http.StatusOK)

	rr = api.do(http.MethodPost, "/auth/login", "", loginRequest{Login: "ana", Password: "wrong"})
	expectStatus(t, rr, http.StatusUnauthorized)

	rr = api.do(http.MethodGet, "/auth/me", token, nil)
	expectStatus(t, rr, http.StatusOK)
	var me core.User
	decodeBody(t, rr, &me)
	if me.Username != "ana" || me.Email != "ana@example.com" {
		t.Errorf("me = %+v", me)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("password hash leaked")
	}

	expectStatus(t, api.do(http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, api.do(http.MethodGet, "/api/days", "garbage", nil), http.StatusUnauthorized)

	rr = api.do(http.MethodPut, "/auth/password", token, passwordRequest{Current: "secret123", New: "newsecret"})
	expectStatus(t, rr, http.StatusNoContent)
	expectStatus(t, api.do(http.MethodPost, "/auth/login", "", loginRequest{Login: "ana", Password: "newsecret"}), http.StatusOK)

	expectStatus(t, api.do(http.MethodDelete, "/auth/me", token, nil), http.StatusNoContent)
	expectStatus(t, api.do(http.MethodGet, "/auth/me", token, nil), http.StatusNotFound)
}

func TestDayLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ana")

	rr := api.do(http.MethodPost, "/api/days", token, `{
		"date": "2024-03-05",
		"incomes": [{"amount": "1000", "tag": "Sueldo"}],
		"expenses": [{"amount": 25.5, "tag": "Comida"}, {"amount": "4,50", "tag": "Transporte"}]
	}`)
	expectStatus(t, rr, http.StatusOK)
	var day struct {
		Date         string  `json:"date"`
		IncomeTotal  float64 `json:"income_total"`
		ExpenseTotal float64 `json:"expense_total"`
		Balance      float64 `json:"balance"`
		Incomes      []core.Income
		Expenses     []core.Expense
	}
	decodeBody(t, rr, &day)
	if day.Date != "2024-03-05" || day.IncomeTotal != 1000 || day.ExpenseTotal != 30 || day.Balance != 970 {
		t.Fatalf("day = %+v", day)
	}
	if len(day.Expenses) != 2 {
		t.Fatalf("expenses = %+v", day.Expenses)
	}

	expectStatus(t, api.do(http.MethodGet, "/api/days/2024-03-05", token, nil), http.StatusOK)
	expectStatus(t, api.do(http.MethodPost, "/api/days/2024-03-05/recompute", token, nil), http.StatusOK)
	expectStatus(t, api.do(http.MethodPost, "/api/days/2024-01-01/recompute", token, nil), http.StatusNotFound)

	var month core.MonthSummary
	rr = api.do(http.MethodGet, "/api/months/2024/3", token, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &month)
	if len(month.Days) != 1 || month.Balance.Cents != 97000 {
		t.Fatalf("month = %+v", month)
	}

	// A write must show up in the cached month.
	rr = api.do(http.MethodPost, "/api/days/2024-03-20/entries", token, map[string]any{
		"category": "expense", "amount": "70", "tag": "Luz",
	})
	expectStatus(t, rr, http.StatusCreated)
	rr = api.do(http.MethodGet, "/api/months/2024/03", token, nil)
	decodeBody(t, rr, &month)
	if len(month.Days) != 2 || month.Balance.Cents != 90000 {
		t.Fatalf("month after entry = %+v", month)
	}

	rr = api.do(http.MethodDelete, "/api/expenses/"+itoa(day.Expenses[0].ID), token, nil)
	expectStatus(t, rr, http.StatusNoContent)
	expectStatus(t, api.do(http.MethodDelete, "/api/expenses/"+itoa(day.Expenses[0].ID), token, nil), http.StatusNotFound)
	expectStatus(t, api.do(http.MethodDelete, "/api/incomes/"+itoa(day.Expenses[1].ID+1000), token, nil), http.StatusNotFound)

	var list daysResponse
	rr = api.do(http.MethodGet, "/api/days?all=true", token, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &list)
	if len(list.Days) != 2 || list.Days[0].Date.String() != "2024-03-20" {
		t.Fatalf("all days = %+v", list.Days)
	}
	rr = api.do(http.MethodGet, "/api/days?before=2024-03-10&limit=5", token, nil)
	decodeBody(t, rr, &list)
	if len(list.Days) != 1 || list.Days[0].Date.String() != "2024-03-05" {
		t.Fatalf("recent days = %+v", list.Days)
	}

	// An empty upsert prunes the day.
	rr = api.do(http.MethodPost, "/api/days", token, `{"date":"2024-03-20","incomes":[],"expenses":[]}`)
	expectStatus(t, rr, http.StatusNoContent)
	expectStatus(t, api.do(http.MethodGet, "/api/days/2024-03-20", token, nil), http.StatusNotFound)

	expectStatus(t, api.do(http.MethodDelete, "/api/days/2024-03-05", token, nil), http.StatusNoContent)
	expectStatus(t, api.do(http.MethodDelete, "/api/days/2024-03-05", token, nil), http.StatusNotFound)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ana")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		field  string
	}{
		{"bad path date", http.MethodGet, "/api/days/2024-13-01", nil, "date"},
		{"negative amount", http.MethodPost, "/api/days", `{"date":"2024-03-05","expenses":[{"amount":"-3","tag":"x"}]}`, "expenses.amount"},
		{"empty body", http.MethodPost, "/api/days", "", "body"},
		{"garbage json", http.MethodPost, "/api/days", "{", "body"},
		{"bad month", http.MethodGet, "/api/months/2024/13", nil, "month"},
		{"bad limit", http.MethodGet, "/api/days?limit=0", nil, "limit"},
		{"bad category", http.MethodGet, "/api/search/tags/luz?category=other", nil, "category"},
		{"bad id", http.MethodDelete, "/api/incomes/abc", nil, "id"},
		{"bad reminder status", http.MethodGet, "/api/reminders?status=late", nil, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(tt.method, tt.path, token, tt.body)
			expectStatus(t, rr, http.StatusBadRequest)
			var eb ErrorBody
			decodeBody(t, rr, &eb)
			if eb.Field != tt.field {
				t.Errorf("field = %q, want %q (%s)", eb.Field, tt.field, eb.Error)
			}
		})
	}
}

func TestUsersAreIsolated(t *testing.T) {
	api := newTestAPI(t)
	ana := api.register("ana")
	bob := api.register("bob")

	rr := api.do(http.MethodPost, "/api/days", ana, `{"date":"2024-03-05","expenses":[{"amount":"10","tag":"Comida"}]}`)
	expectStatus(t, rr, http.StatusOK)

	expectStatus(t, api.do(http.MethodGet, "/api/days/2024-03-05", bob, nil), http.StatusNotFound)

	var search searchResponse
	rr = api.do(http.MethodGet, "/api/search/tags/com", bob, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &search)
	if len(search.Results) != 0 {
		t.Errorf("bob sees %+v", search.Results)
	}

	rr = api.do(http.MethodGet, "/api/search/tags/COM?category=expenses", ana, nil)
	decodeBody(t, rr, &search)
	if len(search.Results) != 1 || search.Results[0].Tag != "Comida" {
		t.Errorf("ana search = %+v", search.Results)
	}

	var stats statsResponse
	rr = api.do(http.MethodGet, "/api/stats/tags/2024/3", ana, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &stats)
	if len(stats.Tags) != 1 || stats.Tags[0].Total.Cents != 1000 || stats.Tags[0].Count != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(rr.Body.String(), `"veces":1`) {
		t.Errorf("stats body lacks veces: %s", rr.Body.String())
	}

	var year yearResponse
	rr = api.do(http.MethodGet, "/api/years/2024", bob, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &year)
	for _, m := range year.Months {
		if m.ExpenseTotal.Cents != 0 {
			t.Errorf("bob year month %d = %+v", m.Month, m)
		}
	}
}

func TestMonthExport(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ana")
	api.do(http.MethodPost, "/api/days", token, `{"date":"2024-03-05","incomes":[{"amount":"100","tag":"Sueldo"}],"expenses":[{"amount":"10","tag":"Luz"}]}`)

	rr := api.do(http.MethodGet, "/api/months/2024/3/export", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, export.Filename(2024, 3)) {
		t.Errorf("content disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.EntriesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("entry rows = %v", rows)
	}
}

func TestTagEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ana")

	var tags tagsResponse
	rr := api.do(http.MethodGet, "/api/tags?category=income", token, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &tags)
	if len(tags.Tags) == 0 {
		t.Fatal("registration did not seed income tags")
	}
	for _, tag := range tags.Tags {
		if tag.Category != core.CategoryIncome {
			t.Errorf("category filter leaked %+v", tag)
		}
	}

	rr = api.do(http.MethodPost, "/api/tags", token, tagRequest{Name: "Gimnasio", Category: "expenses", IsEssential: true})
	expectStatus(t, rr, http.StatusCreated)
	var tag core.Tag
	decodeBody(t, rr, &tag)
	if tag.Category != core.CategoryExpense || !tag.IsEssential {
		t.Errorf("created = %+v", tag)
	}

	expectStatus(t, api.do(http.MethodPost, "/api/tags", token, tagRequest{Name: "Gimnasio", Category: "expense"}), http.StatusBadRequest)
	expectStatus(t, api.do(http.MethodPost, "/api/tags", token, tagRequest{Name: "X", Category: "other"}), http.StatusBadRequest)

	rr = api.do(http.MethodPut, "/api/tags/"+itoa(tag.ID), token, tagRequest{Name: "Gym"})
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &tag)
	if tag.Name != "Gym" || tag.IsEssential {
		t.Errorf("updated = %+v", tag)
	}

	expectStatus(t, api.do(http.MethodDelete, "/api/tags/"+itoa(tag.ID), token, nil), http.StatusNoContent)
	expectStatus(t, api.do(http.MethodDelete, "/api/tags/"+itoa(tag.ID), token, nil), http.StatusNotFound)

	var seeded map[string]int
	rr = api.do(http.MethodPost, "/api/tags/defaults", token, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &seeded)
	if seeded["created"] != 0 {
		t.Errorf("defaults re-seeded %d tags", seeded["created"])
	}
}

func TestReminderEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("ana")

	rr := api.do(http.MethodPost, "/api/reminders", token, map[string]string{
		"date": "2024-04-01", "description": "Pagar alquiler", "tag": "Alquiler", "kind": "expense",
	})
	expectStatus(t, rr, http.StatusCreated)
	var rem core.Reminder
	decodeBody(t, rr, &rem)
	if !rem.Status.Open() {
		t.Fatalf("created = %+v", rem)
	}
	api.do(http.MethodPost, "/api/reminders", token, map[string]string{
		"date": "2024-04-02", "description": "Llamar al banco",
	})

	var list remindersResponse
	rr = api.do(http.MethodGet, "/api/reminders?kind=expense&from=2024-04-01&to=2024-04-30", token, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &list)
	if len(list.Reminders) != 1 || list.Reminders[0].ID != rem.ID {
		t.Fatalf("filtered = %+v", list.Reminders)
	}
	rr = api.do(http.MethodGet, "/api/reminders/date/2024-04-02", token, nil)
	decodeBody(t, rr, &list)
	if len(list.Reminders) != 1 || list.Reminders[0].Kind != core.ReminderGeneral {
		t.Fatalf("by date = %+v", list.Reminders)
	}

	rr = api.do(http.MethodPost, "/api/reminders/"+itoa(rem.ID)+"/convert", token, map[string]string{"amount": "650"})
	expectStatus(t, rr, http.StatusOK)
	var conv struct {
		Reminder core.Reminder `json:"reminder"`
		Day      struct {
			ExpenseTotal float64 `json:"expense_total"`
		} `json:"day"`
	}
	decodeBody(t, rr, &conv)
	if conv.Reminder.Status != core.StatusConverted || conv.Day.ExpenseTotal != 650 {
		t.Fatalf("convert = %+v", conv)
	}
	expectStatus(t, api.do(http.MethodGet, "/api/days/2024-04-01", token, nil), http.StatusOK)

	// Terminal states reject further transitions.
	expectStatus(t, api.do(http.MethodPost, "/api/reminders/"+itoa(rem.ID)+"/cancel", token, nil), http.StatusBadRequest)

	rr = api.do(http.MethodGet, "/api/reminders/pending", token, nil)
	decodeBody(t, rr, &list)
	for _, r := range list.Reminders {
		if r.ID == rem.ID {
			t.Error("converted reminder still pending")
		}
	}

	rr = api.do(http.MethodPost, "/api/reminders/refresh", token, nil)
	expectStatus(t, rr, http.StatusOK)

	expectStatus(t, api.do(http.MethodDelete, "/api/reminders/"+itoa(rem.ID), token, nil), http.StatusNoContent)
	expectStatus(t, api.do(http.MethodDelete, "/api/reminders/"+itoa(rem.ID), token, nil), http.StatusNotFound)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/days", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusNoContent)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin allowed: %q", got)
	}
}

func TestRateLimitOnlyCountsWrites(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "rl.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	ledger := services.NewLedgerService(repo, nil)
	srv := NewServer(Options{RateLimitPerMinute: 2}, Services{
		Ledger: ledger, Tags: services.NewTagService(repo), Users: services.NewUserService(repo),
		Reminders: services.NewReminderService(repo, ledger),
	}, auth.NewTokenIssuer("k", time.Hour), repo, log.New(log.Config{Output: io.Discard}))
	defer srv.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		expectStatus(t, rr, http.StatusOK)
	}
	codes := make([]int, 3)
	for i := range codes {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":"x","password":"y"}`)))
		codes[i] = rr.Code
	}
	if codes[0] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
