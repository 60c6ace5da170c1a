package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// AppointmentFilter narrows ListAppointments. Zero fields are ignored.
type AppointmentFilter struct {
	From      Date
	To        Date
	PatientID uuid.UUID
	Status    AppointmentStatus
}

// Repository is the practice-scoped store. Every method filters by practiceID; rows of other
// practices behave as if absent. Missing rows are reported with the matching not-found error, a
// uniqueness violation on (practice, patient, date, time) with ErrDuplicateBooking.
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, practiceID, id uuid.UUID) (*Patient, error)
	FindPatientByPhone(ctx context.Context, practiceID uuid.UUID, phone string) (*Patient, error)

	// For conflict checks
	FindAppointmentsAtSlot(ctx context.Context, slot Slot) ([]Appointment, error)

	GetAppointment(ctx context.Context, practiceID, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, practiceID uuid.UUID, f AppointmentFilter) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, practiceID, id uuid.UUID) error

	CreateRecurringRule(ctx context.Context, r *RecurringRule) error
	GetRecurringRule(ctx context.Context, practiceID, id uuid.UUID) (*RecurringRule, error)
	ListRecurringRules(ctx context.Context, practiceID uuid.UUID) ([]RecurringRule, error)
	SetRecurringRuleActive(ctx context.Context, practiceID, id uuid.UUID, active bool) (*RecurringRule, error)
	DeleteRecurringRule(ctx context.Context, practiceID, id uuid.UUID) error
	// Worker only: active rules of every practice.
	ListActiveRecurringRules(ctx context.Context) ([]RecurringRule, error)

	// Dates in [from, to] a rule has already produced an appointment for, whatever became of it.
	MaterializedDates(ctx context.Context, practiceID, ruleID uuid.UUID, from, to Date) ([]Date, error)
	RecordMaterialized(ctx context.Context, practiceID, ruleID uuid.UUID, d Date) error

	GetBusinessHours(ctx context.Context, practiceID uuid.UUID) (BusinessHours, error)
	PutBusinessHours(ctx context.Context, practiceID uuid.UUID, hours BusinessHours) error

	InsertTransferRequest(ctx context.Context, req *CallTransferRequest) error
}

// Dispatcher delivers appointment events. Implementations must not block the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}
