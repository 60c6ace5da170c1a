// Package telephony exposes the scheduling operations the AI call agent may invoke during a
// phone call. Every function answers with a result the agent can read back to the caller;
// business rejections are results, not errors.
package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/practice-scheduling/internal/logging"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

const (
	FunctionBookAppointment = "book_appointment"
	FunctionTransferCall    = "transfer_call"
)

// Scheduler is the part of the scheduling service the agent functions need.
type Scheduler interface {
	FindOrCreatePatientByPhone(ctx context.Context, practiceID uuid.UUID, name, phone string) (*scheduling.Patient, error)
	CreateAppointment(ctx context.Context, practiceID uuid.UUID, in scheduling.NewAppointment) (*scheduling.Appointment, error)
	RequestTransfer(ctx context.Context, practiceID uuid.UUID, req scheduling.TransferRequest) scheduling.TransferDecision
}

type BookAppointmentArgs struct {
	PatientName     string `json:"patientName"`
	PhoneNumber     string `json:"phoneNumber"`
	Service         string `json:"service"`
	AppointmentDate string `json:"appointmentDate"` // YYYY-MM-DD
	AppointmentTime string `json:"appointmentTime"` // HH:MM
	Notes           string `json:"notes,omitempty"`
}

type BookAppointmentResult struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	ErrorCode     string     `json:"error_code,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	Date          string     `json:"date,omitempty"`
	Time          string     `json:"time,omitempty"`
}

type TransferCallArgs struct {
	CallID      string `json:"callId"`
	CallerName  string `json:"callerName"`
	CallerPhone string `json:"callerPhone"`
	Reason      string `json:"reason"`
}

type TransferCallResult struct {
	Success   bool                      `json:"success"`
	Transfer  bool                      `json:"transfer"`
	Status    scheduling.TransferStatus `json:"status"`
	RequestID *uuid.UUID                `json:"request_id,omitempty"`
	Message   string                    `json:"message"`
}

var _ Scheduler = (*scheduling.Service)(nil)

type Functions struct {
	scheduler Scheduler
	clock     scheduling.Clock
}

func NewFunctions(scheduler Scheduler, clock scheduling.Clock) *Functions {
	return &Functions{scheduler: scheduler, clock: clock}
}

// BookAppointment registers the caller if needed and books the requested slot as an AI booking.
// Past dates are refused so the agent can ask again.
func (f *Functions) BookAppointment(ctx context.Context, practiceID uuid.UUID, args BookAppointmentArgs) BookAppointmentResult {
	args.PatientName = strings.TrimSpace(args.PatientName)
	args.Service = strings.TrimSpace(args.Service)

	if args.PatientName == "" || strings.TrimSpace(args.PhoneNumber) == "" || args.Service == "" {
		return rejected(scheduling.ErrInvalidInput, "Please provide the patient's name, phone number and the service.")
	}

	date, err := scheduling.ParseDate(strings.TrimSpace(args.AppointmentDate))
	if err != nil {
		return rejected(scheduling.ErrInvalidInput, "The date must be given as YYYY-MM-DD.")
	}
	at, err := scheduling.ParseTimeOfDay(strings.TrimSpace(args.AppointmentTime))
	if err != nil {
		return rejected(scheduling.ErrInvalidInput, "The time must be given as HH:MM.")
	}

	now := f.clock.Now()
	if at.On(date, now.Location()).Before(now) {
		return rejected(scheduling.ErrInvalidInput, "That time is in the past. Please choose a future date and time.")
	}

	patient, err := f.scheduler.FindOrCreatePatientByPhone(ctx, practiceID, args.PatientName, args.PhoneNumber)
	if err != nil {
		return failed(ctx, err)
	}

	in := scheduling.NewAppointment{
		PatientID: patient.ID,
		Date:      date,
		Time:      at,
		Service:   args.Service,
		AIBooked:  true,
	}
	if notes := strings.TrimSpace(args.Notes); notes != "" {
		in.Notes = &notes
	}

	appt, err := f.scheduler.CreateAppointment(ctx, practiceID, in)
	if err != nil {
		return failed(ctx, err)
	}

	return BookAppointmentResult{
		Success:       true,
		Message:       "The appointment on " + appt.Date.String() + " at " + appt.Time.String() + " is booked.",
		AppointmentID: &appt.ID,
		PatientID:     &patient.ID,
		Date:          appt.Date.String(),
		Time:          appt.Time.String(),
	}
}

// TransferCall asks the business-hours gate whether the call may go to staff.
func (f *Functions) TransferCall(ctx context.Context, practiceID uuid.UUID, args TransferCallArgs) TransferCallResult {
	d := f.scheduler.RequestTransfer(ctx, practiceID, scheduling.TransferRequest{
		CallID:      args.CallID,
		CallerName:  args.CallerName,
		CallerPhone: args.CallerPhone,
		Reason:      args.Reason,
	})

	res := TransferCallResult{
		Success:  true,
		Transfer: d.Transfer,
		Status:   d.Status,
		Message:  d.Message,
	}
	if d.RequestID != uuid.Nil {
		id := d.RequestID
		res.RequestID = &id
	}
	return res
}

func rejected(code *scheduling.Error, msg string) BookAppointmentResult {
	return BookAppointmentResult{Success: false, Message: msg, ErrorCode: strings.ToLower(code.Code)}
}

// failed converts a scheduling error into an agent-readable result. Unexpected errors are logged.
func failed(ctx context.Context, err error) BookAppointmentResult {
	var se *scheduling.Error
	if !errors.As(err, &se) {
		logging.FromContext(ctx).Error().Err(err).Msg("telephony booking failed")
		return BookAppointmentResult{
			Success:   false,
			Message:   scheduling.ErrLookupFailed.Message,
			ErrorCode: strings.ToLower(scheduling.ErrLookupFailed.Code),
		}
	}
	if errors.Is(err, scheduling.ErrLookupFailed) {
		logging.FromContext(ctx).Error().Err(err).Msg("telephony booking failed")
	}
	return BookAppointmentResult{Success: false, Message: se.Message, ErrorCode: strings.ToLower(se.Code)}
}

// FunctionCall is the generic envelope call providers send for a tool invocation.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

var ErrUnknownFunction = errors.New("unknown telephony function")

// Invoke decodes call.Arguments for the named function and runs it.
func (f *Functions) Invoke(ctx context.Context, practiceID uuid.UUID, call FunctionCall) (any, error) {
	switch call.Name {
	case FunctionBookAppointment:
		var args BookAppointmentArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return nil, err
		}
		return f.BookAppointment(ctx, practiceID, args), nil
	case FunctionTransferCall:
		var args TransferCallArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return nil, err
		}
		return f.TransferCall(ctx, practiceID, args), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, call.Name)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing arguments")
	}
	// some providers send the arguments as a JSON-encoded string
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
