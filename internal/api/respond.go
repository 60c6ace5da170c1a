package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/practice-scheduling/internal/logging"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps scheduling errors to HTTP statuses. Unknown errors are logged and
// reported as 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *scheduling.Error
	if !errors.As(err, &se) {
		logging.FromContext(r.Context()).Error().Err(err).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput):
		status = http.StatusBadRequest
	case scheduling.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, scheduling.ErrDuplicateBooking),
		errors.Is(err, scheduling.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, scheduling.ErrSlotBusy):
		status = http.StatusConflict
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, scheduling.ErrInvalidRecurrenceRule),
		errors.Is(err, scheduling.ErrWeekendBlocked):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, scheduling.ErrLookupFailed):
		status = http.StatusServiceUnavailable
		logging.FromContext(r.Context()).Error().Err(err).Msg("store lookup failed")
	}

	writeJSON(w, status, ErrorResponse{
		Error:     strings.ToLower(se.Code),
		Details:   se.Message,
		Retryable: scheduling.IsRetryable(err),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", fmt.Sprintf("could not parse JSON: %v", err))
		return false
	}
	return true
}

// uuidParam parses a chi URL parameter, answering 400 when it is not a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+toSnakeParam(name), name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// dateQuery reads an optional YYYY-MM-DD query parameter. A missing parameter yields the zero
// Date.
func dateQuery(w http.ResponseWriter, r *http.Request, name string) (scheduling.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return scheduling.Date{}, true
	}
	d, err := scheduling.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, err.Error())
		return scheduling.Date{}, false
	}
	return d, true
}

// uuidQuery reads an optional UUID query parameter. A missing parameter yields uuid.Nil.
func uuidQuery(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func requireQuery(w http.ResponseWriter, r *http.Request, names ...string) bool {
	for _, name := range names {
		if r.URL.Query().Get(name) == "" {
			writeError(w, http.StatusBadRequest, "missing_"+name, name+" query parameter is required")
			return false
		}
	}
	return true
}

// toSnakeParam turns "appointmentID" into "appointment_id".
func toSnakeParam(name string) string {
	out := make([]byte, 0, len(name)+2)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
