package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	slotUniqueConstraint = "appointments_slot_unique"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func pgDate(d Date) pgtype.Date {
	return pgtype.Date{Time: d.Time(), Valid: !d.IsZero()}
}

func pgDatePtr(d *Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgDate(*d)
}

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// mapWriteError turns constraint violations into scheduling errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == slotUniqueConstraint:
		return ErrDuplicateBooking.Wrap(err)
	case pgErr.Code == pgForeignKeyViolation && strings.Contains(pgErr.ConstraintName, "patient"):
		return ErrPatientNotFound.Wrap(err)
	}
	return err
}

const patientColumns = `id, practice_id, name, phone, email, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PracticeID, &p.Name, &p.Phone, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

const appointmentColumns = `id, practice_id, patient_id, appointment_date, appointment_time,
	duration_minutes, service, status, ai_booked, notes, recurring_rule_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date pgtype.Date
	var at pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.PracticeID,
		&a.PatientID,
		&date,
		&at,
		&a.DurationMinutes,
		&a.Service,
		&a.Status,
		&a.AIBooked,
		&a.Notes,
		&a.RecurringRuleID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(date.Time)
	a.Time = fromPgTime(at)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const ruleColumns = `id, practice_id, patient_id, service, duration_minutes, notes, recurrence_type,
	recurrence_interval, days_of_week, day_of_month, start_time, start_date, end_date, is_active, created_at`

func scanRule(row pgx.Row) (*RecurringRule, error) {
	var r RecurringRule
	var days []int32
	var dayOfMonth *int32
	var startTime pgtype.Time
	var startDate, endDate pgtype.Date

	err := row.Scan(
		&r.ID,
		&r.PracticeID,
		&r.PatientID,
		&r.Service,
		&r.DurationMinutes,
		&r.Notes,
		&r.RecurrenceType,
		&r.RecurrenceInterval,
		&days,
		&dayOfMonth,
		&startTime,
		&startDate,
		&endDate,
		&r.IsActive,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	for _, d := range days {
		r.DaysOfWeek = append(r.DaysOfWeek, int(d))
	}
	if dayOfMonth != nil {
		dom := int(*dayOfMonth)
		r.DayOfMonth = &dom
	}
	r.StartTime = fromPgTime(startTime)
	r.StartDate = DateOf(startDate.Time)
	if endDate.Valid {
		end := DateOf(endDate.Time)
		r.EndDate = &end
	}
	return &r, nil
}

func collectRules(rows pgx.Rows) ([]RecurringRule, error) {
	defer rows.Close()

	result := []RecurringRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, practice_id, name, phone, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.PracticeID, p.Name, p.Phone, p.Email, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) GetPatient(ctx context.Context, practiceID, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE practice_id = $1 AND id = $2
	`, practiceID, id)
	return scanPatient(row)
}

func (r *PgRepository) FindPatientByPhone(ctx context.Context, practiceID uuid.UUID, phone string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE practice_id = $1 AND phone = $2
		ORDER BY created_at
		LIMIT 1
	`, practiceID, phone)
	return scanPatient(row)
}

// Appointments

func (r *PgRepository) FindAppointmentsAtSlot(ctx context.Context, slot Slot) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practice_id = $1
		  AND patient_id = $2
		  AND appointment_date = $3
		  AND appointment_time = $4
	`, slot.PracticeID, slot.PatientID, pgDate(slot.Date), pgTime(slot.Time))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetAppointment(ctx context.Context, practiceID, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practice_id = $1 AND id = $2
	`, practiceID, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, practiceID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	conds := []string{"practice_id = $1"}
	args := []any{practiceID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("appointment_date >= $%d", pgDate(f.From))
	}
	if !f.To.IsZero() {
		add("appointment_date <= $%d", pgDate(f.To))
	}
	if f.PatientID != uuid.Nil {
		add("patient_id = $%d", f.PatientID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY appointment_date, appointment_time, created_at
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID, a.PracticeID, a.PatientID, pgDate(a.Date), pgTime(a.Time),
		a.DurationMinutes, a.Service, string(a.Status), a.AIBooked, a.Notes, a.RecurringRuleID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("insert appointment: %w", err))
	}
	return nil
}

// UpdateAppointment writes the editable columns. ai_booked and created_at are never touched.
func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $3,
		    appointment_time = $4,
		    duration_minutes = $5,
		    service = $6,
		    status = $7,
		    notes = $8,
		    updated_at = $9
		WHERE practice_id = $1 AND id = $2
	`,
		a.PracticeID, a.ID, pgDate(a.Date), pgTime(a.Time), a.DurationMinutes,
		a.Service, string(a.Status), a.Notes, a.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("update appointment: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, practiceID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE practice_id = $1 AND id = $2
	`, practiceID, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Recurring rules

func (r *PgRepository) CreateRecurringRule(ctx context.Context, rule *RecurringRule) error {
	var days []int32
	for _, d := range rule.DaysOfWeek {
		days = append(days, int32(d))
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO recurring_appointment_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		rule.ID, rule.PracticeID, rule.PatientID, rule.Service, rule.DurationMinutes, rule.Notes,
		string(rule.RecurrenceType), rule.RecurrenceInterval, days, rule.DayOfMonth,
		pgTime(rule.StartTime), pgDate(rule.StartDate), pgDatePtr(rule.EndDate), rule.IsActive, rule.CreatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("insert recurring rule: %w", err))
	}
	return nil
}

func (r *PgRepository) GetRecurringRule(ctx context.Context, practiceID, id uuid.UUID) (*RecurringRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_appointment_rules
		WHERE practice_id = $1 AND id = $2
	`, practiceID, id)
	return scanRule(row)
}

func (r *PgRepository) ListRecurringRules(ctx context.Context, practiceID uuid.UUID) ([]RecurringRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_appointment_rules
		WHERE practice_id = $1
		ORDER BY created_at
	`, practiceID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) ListActiveRecurringRules(ctx context.Context) ([]RecurringRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_appointment_rules
		WHERE is_active
		ORDER BY practice_id, created_at
	`)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) SetRecurringRuleActive(ctx context.Context, practiceID, id uuid.UUID, active bool) (*RecurringRule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE recurring_appointment_rules
		SET is_active = $3
		WHERE practice_id = $1 AND id = $2
		RETURNING `+ruleColumns, practiceID, id, active)
	return scanRule(row)
}

func (r *PgRepository) DeleteRecurringRule(ctx context.Context, practiceID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM recurring_appointment_rules
		WHERE practice_id = $1 AND id = $2
	`, practiceID, id)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Rule occurrence ledger

func (r *PgRepository) MaterializedDates(ctx context.Context, practiceID, ruleID uuid.UUID, from, to Date) ([]Date, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT occurrence_date
		FROM recurring_rule_occurrences
		WHERE practice_id = $1 AND rule_id = $2
		  AND occurrence_date BETWEEN $3 AND $4
		ORDER BY occurrence_date
	`, practiceID, ruleID, pgDate(from), pgDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Date{}
	for rows.Next() {
		var d pgtype.Date
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, DateOf(d.Time))
	}
	return out, rows.Err()
}

func (r *PgRepository) RecordMaterialized(ctx context.Context, practiceID, ruleID uuid.UUID, d Date) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recurring_rule_occurrences (rule_id, practice_id, occurrence_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (rule_id, occurrence_date) DO NOTHING
	`, ruleID, practiceID, pgDate(d))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrRuleNotFound.Wrap(err)
		}
		return fmt.Errorf("record materialized occurrence: %w", err)
	}
	return nil
}

// Business hours

func (r *PgRepository) GetBusinessHours(ctx context.Context, practiceID uuid.UUID) (BusinessHours, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT hours FROM business_hours WHERE practice_id = $1
	`, practiceID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessHoursNotFound
		}
		return nil, err
	}

	var hours BusinessHours
	if err := json.Unmarshal(raw, &hours); err != nil {
		return nil, fmt.Errorf("decode business hours: %w", err)
	}
	return hours, nil
}

func (r *PgRepository) PutBusinessHours(ctx context.Context, practiceID uuid.UUID, hours BusinessHours) error {
	raw, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("encode business hours: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO business_hours (practice_id, hours, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (practice_id) DO UPDATE
		SET hours = EXCLUDED.hours,
		    updated_at = now()
	`, practiceID, raw)
	if err != nil {
		return fmt.Errorf("upsert business hours: %w", err)
	}
	return nil
}

// Call transfers

func (r *PgRepository) InsertTransferRequest(ctx context.Context, req *CallTransferRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO call_transfer_requests (id, practice_id, call_id, caller_name, caller_phone, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, req.ID, req.PracticeID, req.CallID, req.CallerName, req.CallerPhone, req.Reason, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert call transfer request: %w", err)
	}
	return nil
}
