package api

import (
	"net/http"

	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

func createPatientHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := svc.CreatePatient(r.Context(), practiceID(r), req.Name, req.Phone, req.Email)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func getPatientHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "patientID")
		if !ok {
			return
		}

		p, err := svc.GetPatient(r.Context(), practiceID(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}
