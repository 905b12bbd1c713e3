package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" || w.Header().Get("X-Test") != "1" {
		t.Errorf("headers = %v", w.Header())
	}
	if w.Body.String() != "{\"n\":1}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilderNoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 || w.Header().Get("Content-Type") != "" {
		t.Errorf("got %d %q %v", w.Code, w.Body.String(), w.Header())
	}
}

func TestJSONResponseBuilderEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(func() {}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestUnauthorizedSetsChallenge(t *testing.T) {
	w := httptest.NewRecorder()
	UnauthorizedError("nope").Write(w)
	if w.Code != http.StatusUnauthorized || w.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("got %d %v", w.Code, w.Header())
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   ErrorBody
	}{
		{"validation", core.Invalid("tag", core.ErrEmptyTag), http.StatusBadRequest, ErrorBody{Error: "empty tag", Field: "tag"}},
		{"wrapped validation", fmt.Errorf("upsert: %w", core.Invalid("date", core.ErrInvalidDate)), http.StatusBadRequest, ErrorBody{Error: "invalid date", Field: "date"}},
		{"not found", fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound, ErrorBody{Error: "not found"}},
		{"credentials", core.ErrInvalidCredentials, http.StatusUnauthorized, ErrorBody{Error: "invalid credentials"}},
		{"token", auth.ErrInvalidToken, http.StatusUnauthorized, ErrorBody{Error: auth.ErrInvalidToken.Error()}},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, ErrorBody{Error: "internal server error"}},
	}
	logger := log.New(log.Config{Output: io.Discard})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			r = r.WithContext(log.NewContext(r.Context(), logger))
			w := httptest.NewRecorder()
			writeError(w, r, log.OpRead, tt.err)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var got ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got != tt.body {
				t.Errorf("body = %+v, want %+v", got, tt.body)
			}
		})
	}
}
