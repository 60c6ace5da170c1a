package scheduling

import "time"

// transitions lists the statuses reachable from each status. Completed is terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCancelled: {StatusPending},
	StatusCompleted: nil,
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ClassifyEvent picks the webhook action for an update. Only the target status matters:
// reactivating a cancelled appointment to pending is an ordinary update.
func ClassifyEvent(_, newStatus AppointmentStatus) EventAction {
	switch newStatus {
	case StatusConfirmed:
		return ActionConfirmed
	case StatusCancelled:
		return ActionCancelled
	default:
		return ActionUpdated
	}
}

// Transition moves a to the given status and returns the updated copy together with the event
// describing the change. The input is not modified.
func Transition(a Appointment, patient *Patient, to AppointmentStatus, now time.Time) (Appointment, Event, error) {
	if !to.Valid() {
		return Appointment{}, Event{}, ErrInvalidTransition.WithMessage("unknown status " + string(to))
	}
	if !CanTransition(a.Status, to) {
		return Appointment{}, Event{}, ErrInvalidTransition.WithMessage(
			"cannot change an appointment from " + string(a.Status) + " to " + string(to))
	}

	updated := a
	updated.Status = to
	updated.UpdatedAt = now

	return updated, updateEvent(a, updated, patient, now), nil
}

func createdEvent(a Appointment, patient *Patient, now time.Time) Event {
	return Event{
		Action:        ActionCreated,
		PracticeID:    a.PracticeID,
		AppointmentID: a.ID,
		Appointment:   a,
		Patient:       patient,
		OccurredAt:    now,
	}
}

func updateEvent(old, updated Appointment, patient *Patient, now time.Time) Event {
	prior := old
	return Event{
		Action:        ClassifyEvent(old.Status, updated.Status),
		PracticeID:    updated.PracticeID,
		AppointmentID: updated.ID,
		Appointment:   updated,
		Patient:       patient,
		OldData:       &prior,
		OccurredAt:    now,
	}
}

// deletedEvent announces a removed appointment as cancelled, carrying its last snapshot.
func deletedEvent(a Appointment, patient *Patient, now time.Time) Event {
	return Event{
		Action:        ActionCancelled,
		PracticeID:    a.PracticeID,
		AppointmentID: a.ID,
		Appointment:   a,
		Patient:       patient,
		OccurredAt:    now,
	}
}
