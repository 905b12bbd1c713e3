package http

import (
	"context"
	"net/http"
	"strconv"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
)

const defaultRecentLimit = 30

type daysResponse struct {
	Days []core.DaySummary `json:"days"`
}

// handleListDays lists recent days. ?before= picks the newest date to include
// (today by default); ?all=true ignores it.
func (s *Server) handleListDays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserID(ctx)
	limit, err := queryLimit(r, defaultRecentLimit, s.opts.RecentLimitMax)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	all := false
	if v := r.URL.Query().Get("all"); v != "" {
		if all, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, log.OpList, core.Invalid("all", err))
			return
		}
	}

	var days []core.DaySummary
	if all {
		days, err = s.svc.Ledger.AllDays(ctx, uid, limit)
	} else {
		var before *core.Date
		if before, err = queryDate(r, "before"); err != nil {
			writeError(w, r, log.OpList, err)
			return
		}
		ref := core.Today()
		if before != nil {
			ref = *before
		}
		days, err = s.svc.Ledger.RecentDays(ctx, uid, ref, limit)
	}
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if days == nil {
		days = []core.DaySummary{}
	}
	writeJSON(w, http.StatusOK, daysResponse{Days: days})
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	day, err := s.svc.Ledger.GetDay(r.Context(), auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// handleUpsertDay replaces the day's rows with the body. An upsert that
// leaves the day empty answers 204.
func (s *Server) handleUpsertDay(w http.ResponseWriter, r *http.Request) {
	var in core.DayInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	sanitizeDay(&in)
	day, err := s.svc.Ledger.UpsertDay(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	if day == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleDeleteDay(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	ok, err := s.svc.Ledger.DeleteDay(r.Context(), auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if !ok {
		NotFoundError("day not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var in core.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in.Tag = sanitizeInput(in.Tag)
	day, err := s.svc.Ledger.AddEntry(r.Context(), auth.UserID(r.Context()), date, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, day)
}

// handleRecomputeDay rebuilds the stored income total from the day's rows.
func (s *Server) handleRecomputeDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserID(ctx)
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, r, log.OpRecompute, err)
		return
	}
	if err := s.svc.Ledger.RecomputeDay(ctx, uid, date); err != nil {
		writeError(w, r, log.OpRecompute, err)
		return
	}
	day, err := s.svc.Ledger.GetDay(ctx, uid, date)
	if err != nil {
		writeError(w, r, log.OpRecompute, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	s.deleteEntry(w, r, s.svc.Ledger.DeleteIncome)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	s.deleteEntry(w, r, s.svc.Ledger.DeleteExpense)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, userID, id int64) (bool, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	ok, err := del(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if !ok {
		NotFoundError("entry not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sanitizeDay(in *core.DayInput) {
	for i := range in.Incomes {
		in.Incomes[i].Tag = sanitizeInput(in.Incomes[i].Tag)
	}
	for i := range in.Expenses {
		in.Expenses[i].Tag = sanitizeInput(in.Expenses[i].Tag)
	}
}
