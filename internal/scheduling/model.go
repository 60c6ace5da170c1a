package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// StatusInfo is the presentation data attached to a status.
type StatusInfo struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var statusTable = map[AppointmentStatus]StatusInfo{
	StatusPending:   {Label: "Ausstehend", Color: "#f59e0b"},
	StatusConfirmed: {Label: "Bestätigt", Color: "#10b981"},
	StatusCompleted: {Label: "Abgeschlossen", Color: "#3b82f6"},
	StatusCancelled: {Label: "Storniert", Color: "#ef4444"},
}

func (s AppointmentStatus) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Info returns the label and color for s. Unknown statuses get the raw value and a neutral color.
func (s AppointmentStatus) Info() StatusInfo {
	if info, ok := statusTable[s]; ok {
		return info
	}
	return StatusInfo{Label: string(s), Color: "#6b7280"}
}

const DefaultDurationMinutes = 30

type Patient struct {
	ID         uuid.UUID `json:"id"`
	PracticeID uuid.UUID `json:"practice_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      *string   `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	PracticeID      uuid.UUID         `json:"practice_id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	Date            Date              `json:"date"`
	Time            TimeOfDay         `json:"time"`
	DurationMinutes int               `json:"duration_minutes"`
	Service         string            `json:"service"`
	Status          AppointmentStatus `json:"status"`
	AIBooked        bool              `json:"ai_booked"`
	Notes           *string           `json:"notes,omitempty"`
	RecurringRuleID *uuid.UUID        `json:"recurring_rule_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Slot is the collision key of an appointment.
type Slot struct {
	PracticeID uuid.UUID
	PatientID  uuid.UUID
	Date       Date
	Time       TimeOfDay
}

func (a Appointment) Slot() Slot {
	return Slot{PracticeID: a.PracticeID, PatientID: a.PatientID, Date: a.Date, Time: a.Time}
}

func (s Slot) Key() string {
	return s.PracticeID.String() + ":" + s.PatientID.String() + ":" + s.Date.String() + ":" + s.Time.String()
}

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

type RecurringRule struct {
	ID                 uuid.UUID      `json:"id"`
	PracticeID         uuid.UUID      `json:"practice_id"`
	PatientID          uuid.UUID      `json:"patient_id"`
	Service            string         `json:"service"`
	DurationMinutes    int            `json:"duration_minutes"`
	Notes              *string        `json:"notes,omitempty"`
	RecurrenceType     RecurrenceType `json:"recurrence_type"`
	RecurrenceInterval int            `json:"recurrence_interval"`
	DaysOfWeek         []int          `json:"days_of_week,omitempty"` // 0 = Sunday
	DayOfMonth         *int           `json:"day_of_month,omitempty"`
	StartTime          TimeOfDay      `json:"start_time"`
	StartDate          Date           `json:"start_date"`
	EndDate            *Date          `json:"end_date,omitempty"`
	IsActive           bool           `json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Occurrence is one concrete instance of a recurring rule.
type Occurrence struct {
	Date Date      `json:"date"`
	Time TimeOfDay `json:"time"`
}

// DayHours is one weekday's opening window, [Open, Close).
type DayHours struct {
	Open   TimeOfDay
	Close  TimeOfDay
	Closed bool
}

type TransferStatus string

const (
	TransferStatusTransferred TransferStatus = "transferred"
	TransferStatusQueued      TransferStatus = "queued"
)

type CallTransferRequest struct {
	ID          uuid.UUID      `json:"id"`
	PracticeID  uuid.UUID      `json:"practice_id"`
	CallID      string         `json:"call_id,omitempty"`
	CallerName  string         `json:"caller_name,omitempty"`
	CallerPhone string         `json:"caller_phone,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Status      TransferStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

type EventAction string

const (
	ActionCreated   EventAction = "created"
	ActionUpdated   EventAction = "updated"
	ActionConfirmed EventAction = "confirmed"
	ActionCancelled EventAction = "cancelled"
)

// Event is the side-effect notification produced by every appointment mutation.
type Event struct {
	Action        EventAction  `json:"action"`
	PracticeID    uuid.UUID    `json:"practice_id"`
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Appointment   Appointment  `json:"appointment"`
	Patient       *Patient     `json:"patient,omitempty"`
	OldData       *Appointment `json:"old_data,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}
