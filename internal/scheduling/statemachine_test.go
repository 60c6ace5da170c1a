package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]AppointmentStatus]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusCancelled, StatusPending}:   true,
	}
	all := []AppointmentStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]AppointmentStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestClassifyEvent(t *testing.T) {
	assert.Equal(t, ActionConfirmed, ClassifyEvent(StatusPending, StatusConfirmed))
	assert.Equal(t, ActionCancelled, ClassifyEvent(StatusConfirmed, StatusCancelled))
	assert.Equal(t, ActionUpdated, ClassifyEvent(StatusCancelled, StatusPending))
	assert.Equal(t, ActionUpdated, ClassifyEvent(StatusConfirmed, StatusCompleted))
	assert.Equal(t, ActionConfirmed, ClassifyEvent(StatusConfirmed, StatusConfirmed))
}

func TestTransition(t *testing.T) {
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	appt := Appointment{
		ID:         uuid.New(),
		PracticeID: uuid.New(),
		PatientID:  uuid.New(),
		Date:       NewDate(2025, time.March, 10),
		Time:       NewTimeOfDay(9, 0),
		Service:    "Erstberatung",
		Status:     StatusPending,
	}

	confirmed, ev, err := Transition(appt, nil, StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, now, confirmed.UpdatedAt)
	assert.Equal(t, StatusPending, appt.Status, "input must not change")

	assert.Equal(t, ActionConfirmed, ev.Action)
	assert.Equal(t, appt.ID, ev.AppointmentID)
	require.NotNil(t, ev.OldData)
	assert.Equal(t, StatusPending, ev.OldData.Status)
	assert.Equal(t, StatusConfirmed, ev.Appointment.Status)

	completed, _, err := Transition(confirmed, nil, StatusCompleted, now)
	require.NoError(t, err)

	for _, to := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusCancelled} {
		_, _, err := Transition(completed, nil, to, now)
		assert.ErrorIs(t, err, ErrInvalidTransition, "completed -> %s", to)
	}

	_, _, err = Transition(appt, nil, "archived", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_ReactivateCancelledIsUpdate(t *testing.T) {
	appt := Appointment{ID: uuid.New(), Status: StatusCancelled}

	reactivated, ev, err := Transition(appt, nil, StatusPending, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reactivated.Status)
	assert.Equal(t, ActionUpdated, ev.Action)
}

func TestStatusInfo(t *testing.T) {
	assert.Equal(t, "Bestätigt", StatusConfirmed.Info().Label)
	assert.Equal(t, "archived", AppointmentStatus("archived").Info().Label)
	assert.False(t, AppointmentStatus("archived").Valid())
}
