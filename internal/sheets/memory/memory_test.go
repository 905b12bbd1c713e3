package memory

import (
	"context"
	"testing"

	"contabilidad/internal/core"
	"contabilidad/internal/sheets"
)

func TestStoreUpsertListRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	rows := []sheets.DayRow{
		{UserID: 1, Date: core.NewDate(2024, 3, 9), IncomeTotal: core.Money{Cents: 100}},
		{UserID: 1, Date: core.NewDate(2024, 3, 1), ExpenseTotal: core.Money{Cents: 50}},
		{UserID: 1, Date: core.NewDate(2024, 4, 1)},
		{UserID: 2, Date: core.NewDate(2024, 3, 1)},
	}
	for _, r := range rows {
		if err := s.UpsertDay(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	// Upserting the same key replaces the row.
	if err := s.UpsertDay(ctx, sheets.DayRow{UserID: 1, Date: core.NewDate(2024, 3, 9), IncomeTotal: core.Money{Cents: 300}}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 4 {
		t.Fatalf("Len = %d, want 4", s.Len())
	}

	march, err := s.ListDays(ctx, 1, 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(march) != 2 || march[0].Date.String() != "2024-03-01" || march[1].IncomeTotal.Cents != 300 {
		t.Fatalf("march rows = %+v", march)
	}
	if march[0].Balance().Cents != -50 {
		t.Errorf("balance = %s", march[0].Balance())
	}

	if err := s.RemoveDay(ctx, 1, core.NewDate(2024, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveDay(ctx, 1, core.NewDate(2024, 3, 1)); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	march, _ = s.ListDays(ctx, 1, 2024, 3)
	if len(march) != 1 {
		t.Errorf("after remove = %+v", march)
	}

	if _, err := s.ListDays(ctx, 1, 2024, 0); err == nil {
		t.Error("expected error for month 0")
	}
}
