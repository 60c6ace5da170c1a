package api

import (
	"net/http"
	"time"

	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

func getBusinessHoursHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, err := svc.GetBusinessHours(r.Context(), practiceID(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, hours)
	}
}

func putBusinessHoursHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var hours scheduling.BusinessHours
		if !decodeJSON(w, r, &hours) {
			return
		}

		if err := svc.PutBusinessHours(r.Context(), practiceID(r), hours); err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, hours)
	}
}

// businessHoursStatusHandler reports whether the practice is open now, or at the RFC 3339
// instant given in ?at=.
func businessHoursStatusHandler(svc *scheduling.Service, clock scheduling.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := clock.Now()
		if raw := r.URL.Query().Get("at"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_at", "at must be an RFC 3339 timestamp")
				return
			}
			at = parsed.In(clock.Now().Location())
		}

		open, err := svc.IsWithinBusinessHours(r.Context(), practiceID(r), at)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, BusinessHoursStatusResponse{
			Open:      open,
			CheckedAt: at.Format(time.RFC3339),
		})
	}
}
