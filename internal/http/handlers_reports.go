package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/export"
	"contabilidad/internal/log"
)

const (
	defaultSearchLimit = 50
	defaultStatsLimit  = 10
)

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := pathYearMonth(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	sum, err := s.monthSummary(r.Context(), auth.UserID(r.Context()), year, month)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleMonthExport streams the month as an XLSX workbook.
func (s *Server) handleMonthExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserID(ctx)
	year, month, err := pathYearMonth(r)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	sum, err := s.monthSummary(ctx, uid, year, month)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	days := make([]*core.Day, 0, len(sum.Days))
	for _, d := range sum.Days {
		day, err := s.svc.Ledger.GetDay(ctx, uid, d.Date)
		if errors.Is(err, core.ErrNotFound) {
			// pruned after the summary was read
			continue
		}
		if err != nil {
			writeError(w, r, log.OpExport, err)
			return
		}
		days = append(days, day)
	}

	var buf bytes.Buffer
	if err := export.WriteMonth(&buf, sum, days); err != nil {
		writeError(w, r, log.OpExport, fmt.Errorf("build workbook: %w", err))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(year, month)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	log.FromContext(ctx).WithComponent(log.ComponentExport).InfoContext(ctx, "Month exported",
		log.FieldYear, year, log.FieldMonth, month, "days", len(days), "bytes", buf.Len())
}

type yearResponse struct {
	Year   int                `json:"year"`
	Months []core.MonthTotals `json:"months"`
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, _, err := pathYearMonth(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	months, err := s.svc.Ledger.YearSummary(r.Context(), auth.UserID(r.Context()), year)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, yearResponse{Year: year, Months: months})
}

type searchResponse struct {
	Query    string          `json:"query"`
	Category core.Category   `json:"category"`
	Results  []core.TagMatch `json:"results"`
}

func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	category, err := queryCategory(r, core.CategoryExpense)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	limit, err := queryLimit(r, defaultSearchLimit, s.opts.SearchLimitMax)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	query := sanitizeInput(r.PathValue("query"))
	matches, err := s.svc.Ledger.SearchByTag(r.Context(), auth.UserID(r.Context()), query, category, limit)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	if matches == nil {
		matches = []core.TagMatch{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Category: category, Results: matches})
}

type statsResponse struct {
	Year     int                 `json:"year"`
	Month    int                 `json:"month"`
	Category core.Category       `json:"category"`
	Tags     []core.TagFrequency `json:"tags"`
}

func (s *Server) handleFrequentTags(w http.ResponseWriter, r *http.Request) {
	year, month, err := pathYearMonth(r)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	category, err := queryCategory(r, core.CategoryExpense)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	limit, err := queryLimit(r, defaultStatsLimit, s.opts.SearchLimitMax)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	tags, err := s.svc.Ledger.FrequentTags(r.Context(), auth.UserID(r.Context()), year, month, category, limit)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	if tags == nil {
		tags = []core.TagFrequency{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Year: year, Month: month, Category: category, Tags: tags})
}
