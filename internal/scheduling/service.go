package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practice-scheduling/internal/config"
	"github.com/hackgods/practice-scheduling/internal/logging"
	"github.com/hackgods/practice-scheduling/internal/metrics"
	redisclient "github.com/hackgods/practice-scheduling/internal/redis"
)

const (
	sourceManual    = "manual"
	sourceAI        = "ai"
	sourceRecurring = "recurring"

	// maxExpansionDays bounds preview and materialization requests.
	maxExpansionDays = 366
)

type Service struct {
	repo       Repository
	conflicts  *ConflictChecker
	locker     redisclient.Locker
	dispatcher Dispatcher
	clock      Clock
	cfg        config.Config
}

func NewService(repo Repository, locker redisclient.Locker, dispatcher Dispatcher, clock Clock, cfg config.Config) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if dispatcher == nil {
		dispatcher = NoopDispatcher{}
	}
	return &Service{
		repo:       repo,
		conflicts:  NewConflictChecker(repo),
		locker:     locker,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
	}
}

// NoopDispatcher drops every event.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, Event) {}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, practiceID uuid.UUID, name, phone string, email *string) (*Patient, error) {
	name, phone = strings.TrimSpace(name), normalizePhone(phone)
	if name == "" {
		return nil, invalidInput("patient name is required")
	}
	p := &Patient{
		ID:         uuid.New(),
		PracticeID: practiceID,
		Name:       name,
		Phone:      phone,
		Email:      email,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, lookupFailed("create patient", err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, practiceID, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatient(ctx, practiceID, id)
	if err != nil {
		return nil, lookupFailed("load patient", err)
	}
	return p, nil
}

// FindOrCreatePatientByPhone resolves a caller by phone number, registering them under name if
// the practice does not know the number yet.
func (s *Service) FindOrCreatePatientByPhone(ctx context.Context, practiceID uuid.UUID, name, phone string) (*Patient, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return nil, invalidInput("phone number is required")
	}
	p, err := s.repo.FindPatientByPhone(ctx, practiceID, phone)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, lookupFailed("find patient by phone", err)
	}
	return s.CreatePatient(ctx, practiceID, name, phone, nil)
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// -- Appointments --

type NewAppointment struct {
	PatientID       uuid.UUID
	Date            Date
	Time            TimeOfDay
	DurationMinutes int
	Service         string
	Status          AppointmentStatus // defaults to pending
	AIBooked        bool
	Notes           *string
	RecurringRuleID *uuid.UUID
}

func (in *NewAppointment) normalize() error {
	if in.PatientID == uuid.Nil {
		return invalidInput("patient_id is required")
	}
	if in.Date.IsZero() {
		return invalidInput("date is required")
	}
	if !in.Time.Valid() {
		return invalidInput("time is out of range")
	}
	in.Service = strings.TrimSpace(in.Service)
	if in.Service == "" {
		return invalidInput("service is required")
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = DefaultDurationMinutes
	}
	if in.DurationMinutes < 0 {
		return invalidInput("duration_minutes must be positive")
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	if !in.Status.Valid() {
		return invalidInput("unknown status %q", in.Status)
	}
	return nil
}

func (in NewAppointment) source() string {
	switch {
	case in.RecurringRuleID != nil:
		return sourceRecurring
	case in.AIBooked:
		return sourceAI
	default:
		return sourceManual
	}
}

// CreateAppointment books a slot for a patient. The slot must be free for that patient and the
// day must be bookable under the weekend policy.
func (s *Service) CreateAppointment(ctx context.Context, practiceID uuid.UUID, in NewAppointment) (*Appointment, error) {
	appt, err := s.createAppointment(ctx, practiceID, in)
	outcome := "created"
	if err != nil {
		outcome = errorCode(err)
	}
	metrics.BookingsTotal.WithLabelValues(in.source(), outcome).Inc()
	return appt, err
}

func (s *Service) createAppointment(ctx context.Context, practiceID uuid.UUID, in NewAppointment) (*Appointment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.checkBookableDay(ctx, practiceID, in.Date); err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatient(ctx, practiceID, in.PatientID)
	if err != nil {
		return nil, lookupFailed("load patient", err)
	}

	now := s.clock.Now()
	appt := &Appointment{
		ID:              uuid.New(),
		PracticeID:      practiceID,
		PatientID:       in.PatientID,
		Date:            in.Date,
		Time:            in.Time,
		DurationMinutes: in.DurationMinutes,
		Service:         in.Service,
		Status:          in.Status,
		AIBooked:        in.AIBooked,
		Notes:           in.Notes,
		RecurringRuleID: in.RecurringRuleID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.withSlotLock(ctx, appt.Slot(), func(lockCtx context.Context) error {
		if err := s.ensureSlotFree(lockCtx, appt.Slot(), uuid.Nil); err != nil {
			return err
		}
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return lookupFailed("create appointment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, createdEvent(*appt, patient, now))
	return appt, nil
}

// AppointmentUpdate carries the editable fields. Nil fields are left unchanged.
type AppointmentUpdate struct {
	Date            *Date
	Time            *TimeOfDay
	DurationMinutes *int
	Service         *string
	Notes           *string
	Status          *AppointmentStatus
}

// UpdateAppointment edits an appointment. Moving it re-runs the weekend and conflict checks
// against the new slot; a status change must follow the transition table.
func (s *Service) UpdateAppointment(ctx context.Context, practiceID, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	old, err := s.GetAppointment(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}

	updated := *old
	if upd.Date != nil {
		updated.Date = *upd.Date
	}
	if upd.Time != nil {
		if !upd.Time.Valid() {
			return nil, invalidInput("time is out of range")
		}
		updated.Time = *upd.Time
	}
	if upd.DurationMinutes != nil {
		if *upd.DurationMinutes <= 0 {
			return nil, invalidInput("duration_minutes must be positive")
		}
		updated.DurationMinutes = *upd.DurationMinutes
	}
	if upd.Service != nil {
		svc := strings.TrimSpace(*upd.Service)
		if svc == "" {
			return nil, invalidInput("service is required")
		}
		updated.Service = svc
	}
	if upd.Notes != nil {
		updated.Notes = upd.Notes
	}
	if upd.Status != nil && *upd.Status != old.Status {
		if !upd.Status.Valid() {
			return nil, ErrInvalidTransition.WithMessage("unknown status " + string(*upd.Status))
		}
		if !CanTransition(old.Status, *upd.Status) {
			return nil, ErrInvalidTransition.WithMessage(
				"cannot change an appointment from " + string(old.Status) + " to " + string(*upd.Status))
		}
		updated.Status = *upd.Status
	}

	moved := !updated.Date.Equal(old.Date) || updated.Time != old.Time
	if moved {
		if updated.Date.IsZero() {
			return nil, invalidInput("date is required")
		}
		if err := s.checkBookableDay(ctx, practiceID, updated.Date); err != nil {
			return nil, err
		}
	}

	patient, err := s.patientSnapshot(ctx, practiceID, old.PatientID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated.UpdatedAt = now

	write := func(ctx context.Context) error {
		if moved {
			if err := s.ensureSlotFree(ctx, updated.Slot(), updated.ID); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateAppointment(ctx, &updated); err != nil {
			return lookupFailed("update appointment", err)
		}
		return nil
	}
	if moved {
		err = s.withSlotLock(ctx, updated.Slot(), write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, updateEvent(*old, updated, patient, now))
	return &updated, nil
}

// ChangeStatus applies a single state-machine transition.
func (s *Service) ChangeStatus(ctx context.Context, practiceID, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	old, err := s.GetAppointment(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	patient, err := s.patientSnapshot(ctx, practiceID, old.PatientID)
	if err != nil {
		return nil, err
	}

	updated, ev, err := Transition(*old, patient, to, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAppointment(ctx, &updated); err != nil {
		return nil, lookupFailed("update appointment status", err)
	}

	s.dispatch(ctx, ev)
	return &updated, nil
}

// DeleteAppointment removes the row and announces it as cancelled with its last snapshot.
func (s *Service) DeleteAppointment(ctx context.Context, practiceID, id uuid.UUID) error {
	old, err := s.GetAppointment(ctx, practiceID, id)
	if err != nil {
		return err
	}
	patient, err := s.patientSnapshot(ctx, practiceID, old.PatientID)
	if err != nil {
		return err
	}

	ev := deletedEvent(*old, patient, s.clock.Now())
	if err := s.repo.DeleteAppointment(ctx, practiceID, id); err != nil {
		return lookupFailed("delete appointment", err)
	}

	s.dispatch(ctx, ev)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, practiceID, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, practiceID, id)
	if err != nil {
		return nil, lookupFailed("load appointment", err)
	}
	return a, nil
}

// ListAppointments returns the practice's calendar, ordered by date and time.
func (s *Service) ListAppointments(ctx context.Context, practiceID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, invalidInput("to %s is before from %s", f.To, f.From)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalidInput("unknown status %q", f.Status)
	}
	list, err := s.repo.ListAppointments(ctx, practiceID, f)
	if err != nil {
		return nil, lookupFailed("list appointments", err)
	}
	return list, nil
}

// CheckConflict exposes the slot conflict check. exclude may be uuid.Nil.
func (s *Service) CheckConflict(ctx context.Context, practiceID, patientID uuid.UUID, date Date, at TimeOfDay, exclude uuid.UUID) (ConflictResult, error) {
	if patientID == uuid.Nil || date.IsZero() || !at.Valid() {
		return ConflictResult{}, invalidInput("patient_id, date and time are required")
	}
	slot := Slot{PracticeID: practiceID, PatientID: patientID, Date: date, Time: at}
	return s.conflicts.CheckConflict(ctx, slot, exclude)
}

func (s *Service) ensureSlotFree(ctx context.Context, slot Slot, exclude uuid.UUID) error {
	res, err := s.conflicts.CheckConflict(ctx, slot, exclude)
	if err != nil {
		return err
	}
	if res.Conflict {
		return ErrDuplicateBooking.WithMessage(
			"the patient already has an appointment on " + slot.Date.String() + " at " + slot.Time.String())
	}
	return nil
}

// withSlotLock serialises bookers of one slot. Lock contention is retryable; an unreachable lock
// backend is logged and the write proceeds, since the unique index still rejects duplicates.
func (s *Service) withSlotLock(ctx context.Context, slot Slot, fn func(ctx context.Context) error) error {
	key := redisclient.SlotKey{
		PracticeID: slot.PracticeID,
		PatientID:  slot.PatientID,
		Date:       slot.Date.String(),
		Time:       slot.Time.String(),
	}
	err := s.locker.WithSlotLock(ctx, key, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBusy
	case errors.Is(err, redisclient.ErrLockUnavailable):
		logging.FromContext(ctx).Warn().Err(err).Str("slot", key.String()).Msg("slot lock unavailable, relying on unique index")
		return fn(ctx)
	default:
		return err
	}
}

// patientSnapshot loads the patient for an event payload. A vanished patient yields nil.
func (s *Service) patientSnapshot(ctx context.Context, practiceID, patientID uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatient(ctx, practiceID, patientID)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, lookupFailed("load patient", err)
	}
	return p, nil
}

// dispatch hands ev to the dispatcher. Delivery problems never reach the caller.
func (s *Service) dispatch(ctx context.Context, ev Event) {
	metrics.AppointmentEventsTotal.WithLabelValues(string(ev.Action)).Inc()
	s.dispatcher.Dispatch(context.WithoutCancel(ctx), ev)
}

// -- Weekend policy & business hours --

// checkBookableDay enforces the weekend rule. Under the fixed policy Saturday and Sunday are
// refused regardless of configured hours; under the business_hours policy any weekday marked
// closed is refused, falling back to the fixed rule when no hours are configured.
func (s *Service) checkBookableDay(ctx context.Context, practiceID uuid.UUID, d Date) error {
	if s.cfg.WeekendPolicy == config.WeekendPolicyBusinessHours {
		hours, err := s.repo.GetBusinessHours(ctx, practiceID)
		switch {
		case err == nil:
			if hours.ClosedOn(d.Weekday()) {
				return ErrWeekendBlocked.WithMessage("the practice is closed on " + d.Weekday().String() + "s")
			}
			return nil
		case errors.Is(err, ErrBusinessHoursNotFound):
		default:
			return lookupFailed("load business hours", err)
		}
	}

	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return ErrWeekendBlocked.WithMessage("appointments cannot be booked on weekends")
	}
	return nil
}

func (s *Service) GetBusinessHours(ctx context.Context, practiceID uuid.UUID) (BusinessHours, error) {
	hours, err := s.repo.GetBusinessHours(ctx, practiceID)
	if err != nil {
		return nil, lookupFailed("load business hours", err)
	}
	return hours, nil
}

func (s *Service) PutBusinessHours(ctx context.Context, practiceID uuid.UUID, hours BusinessHours) error {
	if err := hours.Validate(); err != nil {
		return err
	}
	if err := s.repo.PutBusinessHours(ctx, practiceID, hours); err != nil {
		return lookupFailed("save business hours", err)
	}
	return nil
}

// IsWithinBusinessHours reports whether at lies inside the practice's opening hours, evaluated
// in the practice time zone.
func (s *Service) IsWithinBusinessHours(ctx context.Context, practiceID uuid.UUID, at time.Time) (bool, error) {
	hours, err := s.repo.GetBusinessHours(ctx, practiceID)
	if err != nil {
		return false, lookupFailed("load business hours", err)
	}
	return hours.IsOpen(at.In(s.location())), nil
}

func (s *Service) location() *time.Location {
	return s.clock.Now().Location()
}

// -- Call transfer --

type TransferRequest struct {
	CallID      string
	CallerName  string
	CallerPhone string
	Reason      string
}

type TransferDecision struct {
	Transfer  bool           `json:"transfer"`
	Status    TransferStatus `json:"status"`
	RequestID uuid.UUID      `json:"request_id"`
	Message   string         `json:"message"`
}

const (
	transferOpenMessage   = "Connecting you to our team now."
	transferClosedMessage = "The practice is currently closed. We have noted your request and will call you back during opening hours."
)

// RequestTransfer decides whether an AI call may be handed to staff. Every request is recorded.
// If the opening hours cannot be read the call is not handed over but still recorded.
func (s *Service) RequestTransfer(ctx context.Context, practiceID uuid.UUID, req TransferRequest) TransferDecision {
	log := logging.FromContext(ctx)
	now := s.clock.Now()

	open, err := s.IsWithinBusinessHours(ctx, practiceID, now)
	if err != nil {
		log.Warn().Err(err).Str("practice_id", practiceID.String()).Msg("business hours lookup failed, queueing transfer")
		open = false
	}

	decision := TransferDecision{
		Transfer: open,
		Status:   TransferStatusQueued,
		Message:  transferClosedMessage,
	}
	if open {
		decision.Status = TransferStatusTransferred
		decision.Message = transferOpenMessage
	}

	record := &CallTransferRequest{
		ID:          uuid.New(),
		PracticeID:  practiceID,
		CallID:      req.CallID,
		CallerName:  strings.TrimSpace(req.CallerName),
		CallerPhone: normalizePhone(req.CallerPhone),
		Reason:      strings.TrimSpace(req.Reason),
		Status:      decision.Status,
		CreatedAt:   now,
	}
	if err := s.repo.InsertTransferRequest(ctx, record); err != nil {
		log.Error().Err(err).Str("practice_id", practiceID.String()).Str("call_id", req.CallID).
			Msg("failed to record call transfer request")
	} else {
		decision.RequestID = record.ID
	}

	metrics.CallTransfersTotal.WithLabelValues(string(decision.Status)).Inc()
	return decision
}

func errorCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return strings.ToLower(se.Code)
	}
	return "internal"
}
