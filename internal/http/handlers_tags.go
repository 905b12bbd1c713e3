package http

import (
	"net/http"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
)

type tagRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	IsEssential bool   `json:"is_essential"`
}

type tagsResponse struct {
	Tags []core.Tag `json:"tags"`
}

// handleListTags lists the user's tags, optionally narrowed by ?category=.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	category, err := queryCategory(r, "")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	tags, err := s.svc.Tags.List(r.Context(), auth.UserID(r.Context()), category)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if tags == nil {
		tags = []core.Tag{}
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: tags})
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		writeError(w, r, log.OpCreate, core.Invalid("category", err))
		return
	}
	tag, err := s.svc.Tags.Create(r.Context(), auth.UserID(r.Context()), sanitizeInput(req.Name), category, req.IsEssential)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	tag, err := s.svc.Tags.Update(r.Context(), auth.UserID(r.Context()), id, sanitizeInput(req.Name), req.IsEssential)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Tags.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSeedTags(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Tags.SeedDefaults(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, log.OpSeedTags, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": n})
}
