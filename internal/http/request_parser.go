package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"contabilidad/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errBadJSON = errors.New("malformed JSON body")

// decodeJSON reads one JSON value into dst. Malformed bodies become
// validation errors so that writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		switch {
		case errors.Is(err, io.EOF):
			return core.Invalid("body", errors.New("empty body"))
		case errors.Is(err, core.ErrInvalidAmount):
			return core.Invalid("amount", core.ErrInvalidAmount)
		case errors.Is(err, core.ErrInvalidDate):
			return core.Invalid("date", core.ErrInvalidDate)
		}
		return core.Invalid("body", errBadJSON)
	}
	if dec.More() {
		return core.Invalid("body", errBadJSON)
	}
	return nil
}

// pathDate parses the {name} segment as YYYY-MM-DD.
func pathDate(r *http.Request, name string) (core.Date, error) {
	d, err := core.ParseDate(r.PathValue(name))
	if err != nil {
		return core.Date{}, core.Invalid(name, err)
	}
	return d, nil
}

// pathID parses the {name} segment as a positive integer id.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(name, fmt.Errorf("invalid %s", name))
	}
	return id, nil
}

// pathYearMonth reads {year} and optionally {month}.
func pathYearMonth(r *http.Request) (year, month int, err error) {
	year, err = strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, core.Invalid("year", core.ErrInvalidDate)
	}
	if v := r.PathValue("month"); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return 0, 0, core.Invalid("month", core.ErrInvalidMonth)
		}
	}
	return year, month, nil
}

// queryLimit reads ?limit=, defaulting to def and clamping to max.
func queryLimit(r *http.Request, def, max int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, core.Invalid("limit", errors.New("limit must be a positive integer"))
	}
	if n > max {
		n = max
	}
	return n, nil
}

// queryCategory reads ?category=, defaulting to def when absent.
func queryCategory(r *http.Request, def core.Category) (core.Category, error) {
	v := strings.TrimSpace(r.URL.Query().Get("category"))
	if v == "" {
		return def, nil
	}
	c, err := core.ParseCategory(v)
	if err != nil {
		return "", core.Invalid("category", err)
	}
	return c, nil
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, core.Invalid(name, err)
	}
	return &d, nil
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
