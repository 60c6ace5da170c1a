package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practice-scheduling/internal/config"
)

// testRepo wraps MemoryRepository with per-method failure injection.
type testRepo struct {
	*MemoryRepository

	failMu sync.Mutex
	fail   map[string]error
}

func newTestRepo() *testRepo {
	return &testRepo{MemoryRepository: NewMemoryRepository(), fail: map[string]error{}}
}

func (r *testRepo) failWith(method string, err error) {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	r.fail[method] = err
}

func (r *testRepo) injected(method string) error {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	return r.fail[method]
}

func (r *testRepo) FindAppointmentsAtSlot(ctx context.Context, slot Slot) ([]Appointment, error) {
	if err := r.injected("FindAppointmentsAtSlot"); err != nil {
		return nil, err
	}
	return r.MemoryRepository.FindAppointmentsAtSlot(ctx, slot)
}

func (r *testRepo) CreateAppointment(ctx context.Context, a *Appointment) error {
	if err := r.injected("CreateAppointment"); err != nil {
		return err
	}
	return r.MemoryRepository.CreateAppointment(ctx, a)
}

func (r *testRepo) GetBusinessHours(ctx context.Context, practiceID uuid.UUID) (BusinessHours, error) {
	if err := r.injected("GetBusinessHours"); err != nil {
		return nil, err
	}
	return r.MemoryRepository.GetBusinessHours(ctx, practiceID)
}

func (r *testRepo) InsertTransferRequest(ctx context.Context, req *CallTransferRequest) error {
	if err := r.injected("InsertTransferRequest"); err != nil {
		return err
	}
	return r.MemoryRepository.InsertTransferRequest(ctx, req)
}

func (r *testRepo) appointmentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appointments)
}

// recordingDispatcher keeps every event it is handed.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) actions() []EventAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]EventAction, 0, len(d.events))
	for _, ev := range d.events {
		out = append(out, ev.Action)
	}
	return out
}

func (d *recordingDispatcher) last() Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[len(d.events)-1]
}

var errStoreDown = errors.New("connection refused")

var berlin = mustLoadLocation("Europe/Berlin")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type fixture struct {
	repo       *testRepo
	dispatcher *recordingDispatcher
	svc        *Service
	practiceID uuid.UUID
	patient    *Patient
}

// newFixture builds a service over an in-memory store with one registered patient. now is read in Berlin.
func newFixture(now time.Time, policy string) *fixture {
	repo := newTestRepo()
	d := &recordingDispatcher{}
	cfg := config.Config{WeekendPolicy: policy, PracticeTimezone: berlin}
	svc := NewService(repo, nil, d, FixedClock(now.In(berlin)), cfg)

	practiceID := uuid.New()
	patient := &Patient{ID: uuid.New(), PracticeID: practiceID, Name: "Anna Schmidt", Phone: "+4930123456"}
	repo.patients[patient.ID] = *patient

	return &fixture{repo: repo, dispatcher: d, svc: svc, practiceID: practiceID, patient: patient}
}
