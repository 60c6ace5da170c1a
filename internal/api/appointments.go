package api

import (
	"net/http"

	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Time == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "time is required")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), practiceID(r), scheduling.NewAppointment{
			PatientID:       req.PatientID,
			Date:            req.Date,
			Time:            *req.Time,
			DurationMinutes: req.DurationMinutes,
			Service:         req.Service,
			Status:          req.Status,
			Notes:           req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, ok := dateQuery(w, r, "from")
		if !ok {
			return
		}
		to, ok := dateQuery(w, r, "to")
		if !ok {
			return
		}
		patientID, ok := uuidQuery(w, r, "patient_id")
		if !ok {
			return
		}

		status := scheduling.AppointmentStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+string(status))
			return
		}

		appts, err := svc.ListAppointments(r.Context(), practiceID(r), scheduling.AppointmentFilter{
			From:      from,
			To:        to,
			PatientID: patientID,
			Status:    status,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := ListAppointmentsResponse{Appointments: make([]AppointmentResponse, 0, len(appts))}
		for _, a := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "appointmentID")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), practiceID(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func updateAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "appointmentID")
		if !ok {
			return
		}
		var req UpdateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), practiceID(r), id, scheduling.AppointmentUpdate{
			Date:            req.Date,
			Time:            req.Time,
			DurationMinutes: req.DurationMinutes,
			Service:         req.Service,
			Notes:           req.Notes,
			Status:          req.Status,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func changeStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "appointmentID")
		if !ok {
			return
		}
		var req ChangeStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), practiceID(r), id, req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func deleteAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "appointmentID")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), practiceID(r), id); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// checkConflictHandler answers whether patient_id already holds the slot at date and time.
// exclude skips one appointment, for moving it onto its own slot.
func checkConflictHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireQuery(w, r, "patient_id", "date", "time") {
			return
		}
		patientID, ok := uuidQuery(w, r, "patient_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}
		at, err := scheduling.ParseTimeOfDay(r.URL.Query().Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}
		exclude, ok := uuidQuery(w, r, "exclude")
		if !ok {
			return
		}

		res, err := svc.CheckConflict(r.Context(), practiceID(r), patientID, date, at, exclude)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
