package api

import (
	"github.com/google/uuid"

	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

type CreatePatientRequest struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID                    `json:"patient_id"`
	Date            scheduling.Date              `json:"date"`
	Time            *scheduling.TimeOfDay        `json:"time"`
	DurationMinutes int                          `json:"duration_minutes"`
	Service         string                       `json:"service"`
	Status          scheduling.AppointmentStatus `json:"status"`
	Notes           *string                      `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	Date            *scheduling.Date              `json:"date,omitempty"`
	Time            *scheduling.TimeOfDay         `json:"time,omitempty"`
	DurationMinutes *int                          `json:"duration_minutes,omitempty"`
	Service         *string                       `json:"service,omitempty"`
	Notes           *string                       `json:"notes,omitempty"`
	Status          *scheduling.AppointmentStatus `json:"status,omitempty"`
}

type ChangeStatusRequest struct {
	Status scheduling.AppointmentStatus `json:"status"`
}

// AppointmentResponse adds the display label and color of the status.
type AppointmentResponse struct {
	scheduling.Appointment
	StatusInfo scheduling.StatusInfo `json:"status_info"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{Appointment: a, StatusInfo: a.Status.Info()}
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type CreateRuleRequest struct {
	PatientID          uuid.UUID                 `json:"patient_id"`
	Service            string                    `json:"service"`
	DurationMinutes    int                       `json:"duration_minutes"`
	Notes              *string                   `json:"notes,omitempty"`
	RecurrenceType     scheduling.RecurrenceType `json:"recurrence_type"`
	RecurrenceInterval int                       `json:"recurrence_interval"`
	DaysOfWeek         []int                     `json:"days_of_week,omitempty"`
	DayOfMonth         *int                      `json:"day_of_month,omitempty"`
	StartTime          scheduling.TimeOfDay      `json:"start_time"`
	StartDate          scheduling.Date           `json:"start_date"`
	EndDate            *scheduling.Date          `json:"end_date,omitempty"`
}

func (r CreateRuleRequest) toRule() scheduling.RecurringRule {
	return scheduling.RecurringRule{
		PatientID:          r.PatientID,
		Service:            r.Service,
		DurationMinutes:    r.DurationMinutes,
		Notes:              r.Notes,
		RecurrenceType:     r.RecurrenceType,
		RecurrenceInterval: r.RecurrenceInterval,
		DaysOfWeek:         r.DaysOfWeek,
		DayOfMonth:         r.DayOfMonth,
		StartTime:          r.StartTime,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
	}
}

type ListRulesResponse struct {
	Rules []scheduling.RecurringRule `json:"rules"`
}

type SetRuleActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type DateRangeRequest struct {
	From scheduling.Date `json:"from"`
	To   scheduling.Date `json:"to"`
}

type OccurrencesResponse struct {
	RuleID      uuid.UUID               `json:"rule_id"`
	Occurrences []scheduling.Occurrence `json:"occurrences"`
}

type BusinessHoursStatusResponse struct {
	Open      bool   `json:"open"`
	CheckedAt string `json:"checked_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
