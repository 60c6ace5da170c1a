package scheduling

import (
	"errors"
	"fmt"
)

// Error is a scheduling failure with a stable code and a message fit for end users.
// errors.Is matches on Code, so wrapped and re-messaged copies still match the sentinels.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// Wrap returns a copy of e with err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

var (
	ErrDuplicateBooking = &Error{
		Code:    "DUPLICATE_BOOKING",
		Message: "the patient already has an appointment at this date and time",
	}
	ErrInvalidRecurrenceRule = &Error{
		Code:    "INVALID_RECURRENCE_RULE",
		Message: "the recurrence rule is invalid",
	}
	ErrLookupFailed = &Error{
		Code:    "LOOKUP_FAILED",
		Message: "scheduling data could not be loaded, please try again",
	}
	ErrInvalidTransition = &Error{
		Code:    "INVALID_TRANSITION",
		Message: "the appointment cannot change to the requested status",
	}
	ErrWeekendBlocked = &Error{
		Code:    "WEEKEND_BLOCKED",
		Message: "appointments cannot be booked on this day",
	}
	ErrSlotBusy = &Error{
		Code:    "SLOT_BUSY",
		Message: "this slot is currently being booked, please retry shortly",
	}
	ErrInvalidInput = &Error{
		Code:    "INVALID_INPUT",
		Message: "the request is invalid",
	}

	ErrAppointmentNotFound   = &Error{Code: "APPOINTMENT_NOT_FOUND", Message: "appointment not found"}
	ErrPatientNotFound       = &Error{Code: "PATIENT_NOT_FOUND", Message: "patient not found"}
	ErrRuleNotFound          = &Error{Code: "RULE_NOT_FOUND", Message: "recurring rule not found"}
	ErrBusinessHoursNotFound = &Error{Code: "BUSINESS_HOURS_NOT_FOUND", Message: "business hours are not configured"}
)

// IsRetryable reports whether the same request may succeed when sent again unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLookupFailed) || errors.Is(err, ErrSlotBusy)
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAppointmentNotFound) ||
		errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrBusinessHoursNotFound)
}

func invalidInput(format string, args ...any) *Error {
	return ErrInvalidInput.WithMessage(fmt.Sprintf(format, args...))
}

func invalidRule(format string, args ...any) *Error {
	return ErrInvalidRecurrenceRule.WithMessage(fmt.Sprintf(format, args...))
}

// lookupFailed wraps a store error unless it already carries a scheduling code.
func lookupFailed(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return ErrLookupFailed.Wrap(fmt.Errorf("%s: %w", op, err))
}
