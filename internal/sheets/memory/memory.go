package memory

import (
	"context"
	"sort"
	"sync"

	"contabilidad/internal/core"
	"contabilidad/internal/sheets"
)

type key struct {
	userID int64
	date   string
}

// Store keeps mirrored day rows in process. It backs EXPORT_BACKEND=memory
// and tests.
type Store struct {
	mu   sync.Mutex
	rows map[key]sheets.DayRow
}

var _ sheets.DaySheet = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[key]sheets.DayRow)}
}

func (s *Store) UpsertDay(_ context.Context, row sheets.DayRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key{row.UserID, row.Date.String()}] = row
	return nil
}

func (s *Store) RemoveDay(_ context.Context, userID int64, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, key{userID, date.String()})
	return nil
}

// ListDays returns the user's rows of the month ordered by date.
func (s *Store) ListDays(_ context.Context, userID int64, year, month int) ([]sheets.DayRow, error) {
	from, to, err := core.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.DayRow
	for k, r := range s.rows {
		if k.userID != userID || r.Date.Before(from) || !r.Date.Before(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Len reports how many rows are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
