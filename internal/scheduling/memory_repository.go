package scheduling

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository held in process memory. It enforces the same slot uniqueness
// as the database schema and is used for local runs without Postgres.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	rules        map[uuid.UUID]RecurringRule
	hours        map[uuid.UUID]BusinessHours
	transfers    []CallTransferRequest
	// rule id -> occurrence dates already produced
	materialized map[uuid.UUID]map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     map[uuid.UUID]Patient{},
		appointments: map[uuid.UUID]Appointment{},
		rules:        map[uuid.UUID]RecurringRule{},
		hours:        map[uuid.UUID]BusinessHours{},
		materialized: map[uuid.UUID]map[string]struct{}{},
	}
}

func (m *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryRepository) GetPatient(_ context.Context, practiceID, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok || p.PracticeID != practiceID {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) FindPatientByPhone(_ context.Context, practiceID uuid.UUID, phone string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.PracticeID == practiceID && p.Phone == phone {
			return &p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *MemoryRepository) FindAppointmentsAtSlot(_ context.Context, slot Slot) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.Slot().Key() == slot.Key() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryRepository) GetAppointment(_ context.Context, practiceID, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.PracticeID != practiceID {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) ListAppointments(_ context.Context, practiceID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Appointment{}
	for _, a := range m.appointments {
		switch {
		case a.PracticeID != practiceID,
			!f.From.IsZero() && a.Date.Before(f.From),
			!f.To.IsZero() && a.Date.After(f.To),
			f.PatientID != uuid.Nil && a.PatientID != f.PatientID,
			f.Status != "" && a.Status != f.Status:
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (m *MemoryRepository) slotTaken(slot Slot, except uuid.UUID) bool {
	for _, a := range m.appointments {
		if a.ID != except && a.Slot().Key() == slot.Key() {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slotTaken(a.Slot(), uuid.Nil) {
		return ErrDuplicateBooking
	}
	m.appointments[a.ID] = *a
	return nil
}

func (m *MemoryRepository) UpdateAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.appointments[a.ID]
	if !ok || old.PracticeID != a.PracticeID {
		return ErrAppointmentNotFound
	}
	if m.slotTaken(a.Slot(), a.ID) {
		return ErrDuplicateBooking
	}
	a.AIBooked = old.AIBooked
	a.CreatedAt = old.CreatedAt
	m.appointments[a.ID] = *a
	return nil
}

func (m *MemoryRepository) DeleteAppointment(_ context.Context, practiceID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.PracticeID != practiceID {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *MemoryRepository) CreateRecurringRule(_ context.Context, r *RecurringRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = *r
	return nil
}

func (m *MemoryRepository) GetRecurringRule(_ context.Context, practiceID, id uuid.UUID) (*RecurringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.PracticeID != practiceID {
		return nil, ErrRuleNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) ListRecurringRules(_ context.Context, practiceID uuid.UUID) ([]RecurringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []RecurringRule{}
	for _, r := range m.rules {
		if r.PracticeID == practiceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRepository) SetRecurringRuleActive(_ context.Context, practiceID, id uuid.UUID, active bool) (*RecurringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.PracticeID != practiceID {
		return nil, ErrRuleNotFound
	}
	r.IsActive = active
	m.rules[id] = r
	return &r, nil
}

func (m *MemoryRepository) DeleteRecurringRule(_ context.Context, practiceID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.PracticeID != practiceID {
		return ErrRuleNotFound
	}
	delete(m.rules, id)
	delete(m.materialized, id)
	return nil
}

func (m *MemoryRepository) ListActiveRecurringRules(_ context.Context) ([]RecurringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []RecurringRule{}
	for _, r := range m.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) MaterializedDates(_ context.Context, practiceID, ruleID uuid.UUID, from, to Date) ([]Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[ruleID]; !ok || r.PracticeID != practiceID {
		return []Date{}, nil
	}
	out := []Date{}
	for key := range m.materialized[ruleID] {
		d, err := ParseDate(key)
		if err != nil {
			return nil, err
		}
		if !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *MemoryRepository) RecordMaterialized(_ context.Context, practiceID, ruleID uuid.UUID, d Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[ruleID]; !ok || r.PracticeID != practiceID {
		return ErrRuleNotFound
	}
	if m.materialized[ruleID] == nil {
		m.materialized[ruleID] = map[string]struct{}{}
	}
	m.materialized[ruleID][d.String()] = struct{}{}
	return nil
}

func (m *MemoryRepository) GetBusinessHours(_ context.Context, practiceID uuid.UUID) (BusinessHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hours[practiceID]
	if !ok {
		return nil, ErrBusinessHoursNotFound
	}
	return h, nil
}

func (m *MemoryRepository) PutBusinessHours(_ context.Context, practiceID uuid.UUID, hours BusinessHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hours[practiceID] = hours
	return nil
}

func (m *MemoryRepository) InsertTransferRequest(_ context.Context, req *CallTransferRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, *req)
	return nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PgRepository)(nil)
)
