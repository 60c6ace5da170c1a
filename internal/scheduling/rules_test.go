package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/practice-scheduling/internal/config"
)

func dailyRule(patientID uuid.UUID) RecurringRule {
	return RecurringRule{
		PatientID:          patientID,
		Service:            "Krankengymnastik",
		RecurrenceType:     RecurrenceDaily,
		RecurrenceInterval: 1,
		StartTime:          NewTimeOfDay(8, 30),
		StartDate:          NewDate(2025, time.March, 10),
	}
}

func TestCreateRecurringRule(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	in := dailyRule(f.patient.ID)
	rule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, in)
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.Equal(t, DefaultDurationMinutes, rule.DurationMinutes)
	assert.Equal(t, f.practiceID, rule.PracticeID)
	assert.Zero(t, f.repo.appointmentCount(), "creating a rule books nothing")

	weekly := dailyRule(f.patient.ID)
	weekly.RecurrenceType = RecurrenceWeekly
	weekly.DaysOfWeek = []int{5, 1, 5}
	rule, err = f.svc.CreateRecurringRule(ctx, f.practiceID, weekly)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, rule.DaysOfWeek)

	bad := dailyRule(f.patient.ID)
	bad.RecurrenceInterval = 0
	_, err = f.svc.CreateRecurringRule(ctx, f.practiceID, bad)
	assert.ErrorIs(t, err, ErrInvalidRecurrenceRule)

	_, err = f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(uuid.New()))
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestPreviewOccurrences(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	rule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)

	occ, err := f.svc.PreviewOccurrences(ctx, f.practiceID, rule.ID, NewDate(2025, time.March, 10), NewDate(2025, time.March, 12))
	require.NoError(t, err)
	assert.Len(t, occ, 3)
	assert.Zero(t, f.repo.appointmentCount())

	_, err = f.svc.PreviewOccurrences(ctx, f.practiceID, rule.ID, NewDate(2025, time.January, 1), NewDate(2026, time.June, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.PreviewOccurrences(ctx, uuid.New(), rule.ID, NewDate(2025, time.March, 10), NewDate(2025, time.March, 12))
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestMaterializeRule_Idempotent(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	rule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)

	from, to := NewDate(2025, time.March, 10), NewDate(2025, time.March, 16)

	res, err := f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, from, to)
	require.NoError(t, err)
	assert.Len(t, res.Created, 5, "weekdays only")
	require.Len(t, res.Skipped, 2)
	for _, s := range res.Skipped {
		assert.Equal(t, "weekend_blocked", s.Reason)
	}
	for _, a := range res.Created {
		require.NotNil(t, a.RecurringRuleID)
		assert.Equal(t, rule.ID, *a.RecurringRuleID)
		assert.Equal(t, NewTimeOfDay(8, 30), a.Time)
	}

	again, err := f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, from, to)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 7)
	assert.Equal(t, 5, f.repo.appointmentCount())
	assert.Len(t, f.dispatcher.actions(), 5)
}

func TestMaterializeRule_KeepsMovedAndDeletedOccurrences(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	rule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)

	from, to := NewDate(2025, time.March, 10), NewDate(2025, time.March, 14)
	res, err := f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, from, to)
	require.NoError(t, err)
	require.Len(t, res.Created, 5)

	// Tuesday moves to 10:00, Wednesday is dropped.
	ten := NewTimeOfDay(10, 0)
	_, err = f.svc.UpdateAppointment(ctx, f.practiceID, res.Created[1].ID, AppointmentUpdate{Time: &ten})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteAppointment(ctx, f.practiceID, res.Created[2].ID))

	again, err := f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, from, to)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	require.Len(t, again.Skipped, 5)
	for _, s := range again.Skipped {
		assert.Equal(t, "already_materialized", s.Reason)
	}
	assert.Equal(t, 4, f.repo.appointmentCount())

	list, err := f.svc.ListAppointments(ctx, f.practiceID, AppointmentFilter{
		From: NewDate(2025, time.March, 11),
		To:   NewDate(2025, time.March, 12),
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ten, list[0].Time)

	// a later range still books the dates it has not produced yet
	next, err := f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, from, NewDate(2025, time.March, 17))
	require.NoError(t, err)
	require.Len(t, next.Created, 1)
	assert.Equal(t, NewDate(2025, time.March, 17), next.Created[0].Date)
}

func TestMaterializeRule_StopsOnStoreFailure(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	rule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)

	f.repo.failWith("CreateAppointment", errStoreDown)
	_, err = f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, NewDate(2025, time.March, 10), NewDate(2025, time.March, 14))
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestMaterializeActiveRules(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	active, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)

	paused := dailyRule(f.patient.ID)
	paused.StartTime = NewTimeOfDay(15, 0)
	pausedRule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, paused)
	require.NoError(t, err)
	_, err = f.svc.SetRecurringRuleActive(ctx, f.practiceID, pausedRule.ID, false)
	require.NoError(t, err)

	summary, err := f.svc.MaterializeActiveRules(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, MaterializeSummary{Rules: 1, Created: 5, Skipped: 2}, summary)

	list, err := f.svc.ListAppointments(ctx, f.practiceID, AppointmentFilter{})
	require.NoError(t, err)
	for _, a := range list {
		assert.Equal(t, active.ID, *a.RecurringRuleID)
	}

	_, err = f.svc.MaterializeActiveRules(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMaterializeActiveRules_SkipsEarlierToday(t *testing.T) {
	lateMorning := time.Date(2025, time.March, 10, 10, 0, 0, 0, berlin)
	f := newFixture(lateMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	_, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)

	afternoon := dailyRule(f.patient.ID)
	afternoon.StartTime = NewTimeOfDay(15, 0)
	_, err = f.svc.CreateRecurringRule(ctx, f.practiceID, afternoon)
	require.NoError(t, err)

	summary, err := f.svc.MaterializeActiveRules(ctx, 6)
	require.NoError(t, err)
	// 08:30 loses Monday, 15:00 keeps it; both lose the weekend
	assert.Equal(t, MaterializeSummary{Rules: 2, Created: 9, Skipped: 5}, summary)

	monday, err := f.svc.ListAppointments(ctx, f.practiceID, AppointmentFilter{
		From: NewDate(2025, time.March, 10),
		To:   NewDate(2025, time.March, 10),
	})
	require.NoError(t, err)
	require.Len(t, monday, 1)
	assert.Equal(t, NewTimeOfDay(15, 0), monday[0].Time)
}

func TestDeleteRecurringRule_KeepsAppointments(t *testing.T) {
	f := newFixture(mondayMorning, config.WeekendPolicyFixed)
	ctx := context.Background()

	rule, err := f.svc.CreateRecurringRule(ctx, f.practiceID, dailyRule(f.patient.ID))
	require.NoError(t, err)
	_, err = f.svc.MaterializeRule(ctx, f.practiceID, rule.ID, NewDate(2025, time.March, 10), NewDate(2025, time.March, 11))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRecurringRule(ctx, f.practiceID, rule.ID))
	assert.Equal(t, 2, f.repo.appointmentCount())

	_, err = f.svc.GetRecurringRule(ctx, f.practiceID, rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}
