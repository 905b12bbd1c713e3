package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"contabilidad/internal/core"
)

func fieldOf(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"valid", `{"amount":"12,50","tag":"Luz"}`, ""},
		{"empty", ``, "body"},
		{"malformed", `{"amount":`, "body"},
		{"trailing value", `{"tag":"a"} {"tag":"b"}`, "body"},
		{"bad amount", `{"amount":"abc"}`, "amount"},
		{"bad date", `{"date":"2024-02-30"}`, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst struct {
				Amount core.Money `json:"amount"`
				Tag    string     `json:"tag"`
				Date   core.Date  `json:"date"`
			}
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Amount.Cents != 1250 {
					t.Errorf("amount = %d", dst.Amount.Cents)
				}
				return
			}
			if got := fieldOf(err); got != tt.field {
				t.Errorf("field = %q, want %q (err %v)", got, tt.field, err)
			}
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	body := `{"tag":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst map[string]string
	if err := decodeJSON(httptest.NewRecorder(), r, &dst); fieldOf(err) != "body" {
		t.Errorf("oversized body: %v", err)
	}
}

func TestPathAndQueryHelpers(t *testing.T) {
	mux := http.NewServeMux()
	var (
		year, month int
		date        core.Date
		id          int64
		errs        []error
	)
	mux.HandleFunc("GET /m/{year}/{month}", func(w http.ResponseWriter, r *http.Request) {
		var err error
		year, month, err = pathYearMonth(r)
		errs = append(errs, err)
	})
	mux.HandleFunc("GET /y/{year}", func(w http.ResponseWriter, r *http.Request) {
		var err error
		year, month, err = pathYearMonth(r)
		errs = append(errs, err)
	})
	mux.HandleFunc("GET /d/{date}/{id}", func(w http.ResponseWriter, r *http.Request) {
		var err error
		date, err = pathDate(r, "date")
		errs = append(errs, err)
		id, err = pathID(r, "id")
		errs = append(errs, err)
	})
	serve := func(path string) {
		errs = nil
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	serve("/m/2024/07")
	if year != 2024 || month != 7 || errs[0] != nil {
		t.Errorf("month path = %d-%d %v", year, month, errs)
	}
	serve("/y/2023")
	if year != 2023 || month != 0 || errs[0] != nil {
		t.Errorf("year path = %d-%d %v", year, month, errs)
	}
	serve("/m/2024/0")
	if fieldOf(errs[0]) != "month" {
		t.Errorf("month 0: %v", errs)
	}
	serve("/m/abcd/1")
	if fieldOf(errs[0]) != "year" {
		t.Errorf("bad year: %v", errs)
	}
	serve("/d/2024-02-29/15")
	if date.String() != "2024-02-29" || id != 15 || errs[0] != nil || errs[1] != nil {
		t.Errorf("date path = %s %d %v", date, id, errs)
	}
	serve("/d/2023-02-29/-1")
	if fieldOf(errs[0]) != "date" || fieldOf(errs[1]) != "id" {
		t.Errorf("invalid date path: %v", errs)
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 30, false},
		{"limit=5", 5, false},
		{"limit=500", 100, false},
		{"limit=0", 0, true},
		{"limit=x", 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		got, err := queryLimit(r, 30, 100)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("queryLimit(%q) = %d, %v", tt.query, got, err)
		}
	}
}

func TestQueryCategoryAndDate(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?category=Incomes&from=2024-01-31", nil)
	c, err := queryCategory(r, core.CategoryExpense)
	if err != nil || c != core.CategoryIncome {
		t.Errorf("category = %q, %v", c, err)
	}
	d, err := queryDate(r, "from")
	if err != nil || d == nil || d.String() != "2024-01-31" {
		t.Errorf("from = %v, %v", d, err)
	}
	if d, err := queryDate(r, "to"); d != nil || err != nil {
		t.Errorf("absent date = %v, %v", d, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	if c, _ := queryCategory(r, core.CategoryExpense); c != core.CategoryExpense {
		t.Errorf("default category = %q", c)
	}
	r = httptest.NewRequest(http.MethodGet, "/?category=savings", nil)
	if _, err := queryCategory(r, ""); fieldOf(err) != "category" {
		t.Errorf("bad category: %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Luz  ":         "Luz",
		"a\x00b\x07c":     "abc",
		"line1\nline2":    "line1\nline2",
		"tab\there":       "tab\there",
		"Teléfono móvil": "Teléfono móvil",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
