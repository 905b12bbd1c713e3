package http

import (
	"net/http"
	"time"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}
	user, err := s.svc.Users.Register(r.Context(), sanitizeInput(req.Username), sanitizeInput(req.Email), req.Password)
	if err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}
	s.writeToken(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}
	user, err := s.svc.Users.Authenticate(r.Context(), sanitizeInput(req.Login), req.Password)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "Login failed",
			log.FieldClientIP, s.detector.ExtractClientIP(r))
		writeError(w, r, log.OpLogin, err)
		return
	}
	s.writeToken(w, r, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, r *http.Request, status int, user core.User) {
	token, exp, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, ExpiresAt: exp, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.svc.Users.ChangePassword(r.Context(), auth.UserID(r.Context()), req.Current, req.New); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteMe removes the account together with every row it owns.
func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if err := s.svc.Users.Delete(r.Context(), uid); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	s.months.Invalidate(userKeyPrefix(uid))
	w.WriteHeader(http.StatusNoContent)
}
