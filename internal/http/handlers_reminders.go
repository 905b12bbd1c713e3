package http

import (
	"net/http"
	"strings"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
)

type remindersResponse struct {
	Reminders []core.Reminder `json:"reminders"`
}

type convertResponse struct {
	Reminder core.Reminder `json:"reminder"`
	Day      *core.Day     `json:"day"`
}

func writeReminders(w http.ResponseWriter, list []core.Reminder) {
	if list == nil {
		list = []core.Reminder{}
	}
	writeJSON(w, http.StatusOK, remindersResponse{Reminders: list})
}

// reminderFilter reads ?status=, ?kind=, ?from= and ?to=.
func reminderFilter(r *http.Request) (core.ReminderFilter, error) {
	var f core.ReminderFilter
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, err := core.ParseReminderStatus(v)
		if err != nil {
			return f, core.Invalid("status", err)
		}
		f.Status = &st
	}
	if v := strings.TrimSpace(q.Get("kind")); v != "" {
		k, err := core.ParseReminderKind(v)
		if err != nil {
			return f, core.Invalid("kind", err)
		}
		f.Kind = &k
	}
	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	f, err := reminderFilter(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	list, err := s.svc.Reminders.List(r.Context(), auth.UserID(r.Context()), f)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeReminders(w, list)
}

func (s *Server) handlePendingReminders(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reminders.Pending(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeReminders(w, list)
}

func (s *Server) handleRemindersByDate(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	list, err := s.svc.Reminders.ListByDate(r.Context(), auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeReminders(w, list)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var in core.ReminderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Tag = sanitizeInput(in.Tag)
	rem, err := s.svc.Reminders.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var in core.ReminderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Tag = sanitizeInput(in.Tag)
	rem, err := s.svc.Reminders.Update(r.Context(), auth.UserID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Reminders.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	rem, err := s.svc.Reminders.Cancel(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// handleConvertReminder books the reminder as a ledger entry on its date.
func (s *Server) handleConvertReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpConvert, err)
		return
	}
	var c core.ReminderConversion
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpConvert, err)
		return
	}
	c.Tag = sanitizeInput(c.Tag)
	rem, day, err := s.svc.Reminders.Convert(r.Context(), auth.UserID(r.Context()), id, c)
	if err != nil {
		writeError(w, r, log.OpConvert, err)
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{Reminder: rem, Day: day})
}

// handleRefreshReminders recomputes overdue flags for every user against
// today. The cron worker does the same on its schedule.
func (s *Server) handleRefreshReminders(w http.ResponseWriter, r *http.Request) {
	marked, reopened, err := s.svc.Reminders.RefreshOverdue(r.Context(), core.Today())
	if err != nil {
		writeError(w, r, log.OpRefresh, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"overdue": marked, "reopened": reopened})
}
