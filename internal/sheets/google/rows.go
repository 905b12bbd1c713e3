package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contabilidad/internal/core"
	ports "contabilidad/internal/sheets"
)

func formatRow(r ports.DayRow, updated time.Time) []any {
	return []any{
		strconv.FormatInt(r.UserID, 10),
		r.Date.String(),
		r.IncomeTotal.String(),
		r.ExpenseTotal.String(),
		r.Balance().String(),
		r.IncomeCount,
		r.ExpenseCount,
		updated.Format(time.RFC3339),
	}
}

// parseDayRows reads A:H values back into rows of one user and month.
// Headers, blank rows and rows that do not parse are skipped.
func parseDayRows(values [][]any, userID int64, year, month int) []ports.DayRow {
	var out []ports.DayRow
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 7 {
			continue
		}
		uid, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil || uid != userID {
			continue
		}
		date, err := core.ParseDate(cols[1])
		if err != nil || date.Year() != year || int(date.Month()) != month {
			continue
		}
		income, ok1 := parseAmountToCents(cols[2])
		expense, ok2 := parseAmountToCents(cols[3])
		if !ok1 || !ok2 {
			continue
		}
		incomes, _ := strconv.Atoi(cols[5])
		expenses, _ := strconv.Atoi(cols[6])
		out = append(out, ports.DayRow{
			UserID:       uid,
			Date:         date,
			IncomeTotal:  core.Money{Cents: income},
			ExpenseTotal: core.Money{Cents: expense},
			IncomeCount:  incomes,
			ExpenseCount: expenses,
		})
	}
	return out
}

// parseAmountToCents accepts "12.5", "12,50" or a bare number as rendered by
// the Sheets API.
func parseAmountToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Shift(2).Round(0).IntPart(), true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
