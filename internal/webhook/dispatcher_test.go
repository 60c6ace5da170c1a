package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/practice-scheduling/internal/config"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

func testConfig(url string) config.Config {
	return config.Config{
		WebhookURL:         url,
		WebhookSecret:      "test-secret",
		WebhookWorkers:     2,
		WebhookQueueSize:   16,
		WebhookMaxAttempts: 3,
		WebhookTimeout:     time.Second,
	}
}

func newTestDispatcher(url string, mutate ...func(*config.Config)) *Dispatcher {
	cfg := testConfig(url)
	for _, m := range mutate {
		m(&cfg)
	}
	return NewDispatcher(cfg, WithInitialInterval(5*time.Millisecond), WithLogger(zerolog.Nop()))
}

func sampleEvent(action scheduling.EventAction) scheduling.Event {
	appt := scheduling.Appointment{
		ID:              uuid.New(),
		PracticeID:      uuid.New(),
		PatientID:       uuid.New(),
		Date:            scheduling.NewDate(2025, time.March, 10),
		Time:            scheduling.NewTimeOfDay(9, 0),
		DurationMinutes: 30,
		Service:         "Erstberatung",
		Status:          scheduling.StatusPending,
	}
	return scheduling.Event{
		Action:        action,
		PracticeID:    appt.PracticeID,
		AppointmentID: appt.ID,
		Appointment:   appt,
		OccurredAt:    time.Date(2025, time.March, 10, 7, 0, 0, 0, time.UTC),
	}
}

func shutdown(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"action":"created"}`)
	sig := "sha256=" + SignPayload(payload, "s3cret")

	assert.True(t, VerifySignature(payload, "s3cret", sig))
	assert.False(t, VerifySignature(payload, "other", sig))
	assert.False(t, VerifySignature([]byte(`{}`), "s3cret", sig))
}

func TestDispatcher_DeliversSignedEvent(t *testing.T) {
	var (
		mu      sync.Mutex
		bodies  [][]byte
		headers []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	d.Start()

	ev := sampleEvent(scheduling.ActionCreated)
	d.Dispatch(context.Background(), ev)
	shutdown(t, d)

	require.Len(t, bodies, 1)
	h := headers[0]
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "created", h.Get(HeaderEvent))
	assert.NotEmpty(t, h.Get(HeaderDelivery))
	assert.True(t, VerifySignature(bodies[0], "test-secret", h.Get(HeaderSignature)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(bodies[0], &got))
	assert.Equal(t, "created", got["action"])
	assert.Equal(t, ev.AppointmentID.String(), got["appointment_id"])
	appt := got["appointment"].(map[string]any)
	assert.Equal(t, "2025-03-10", appt["date"])
	assert.Equal(t, "09:00", appt["time"])
	assert.NotContains(t, got, "old_data")
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var deliveryIDs sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveryIDs.Store(r.Header.Get(HeaderDelivery), true)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	d.Start()
	d.Dispatch(context.Background(), sampleEvent(scheduling.ActionConfirmed))
	shutdown(t, d)

	assert.Equal(t, int32(3), calls.Load())

	ids := 0
	deliveryIDs.Range(func(_, _ any) bool { ids++; return true })
	assert.Equal(t, 1, ids, "retries reuse the delivery id")
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	d.Start()
	d.Dispatch(context.Background(), sampleEvent(scheduling.ActionUpdated))
	shutdown(t, d)

	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	d.Start()
	d.Dispatch(context.Background(), sampleEvent(scheduling.ActionCancelled))
	shutdown(t, d)

	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_NoSecretNoSignature(t *testing.T) {
	var sig atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig.Store(r.Header.Get(HeaderSignature))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, func(c *config.Config) { c.WebhookSecret = "" })
	d.Start()
	d.Dispatch(context.Background(), sampleEvent(scheduling.ActionCreated))
	shutdown(t, d)

	assert.Equal(t, "", sig.Load())
}

func TestDispatcher_DisabledWithoutURL(t *testing.T) {
	d := newTestDispatcher("")
	assert.False(t, d.Enabled())

	d.Start()
	d.Dispatch(context.Background(), sampleEvent(scheduling.ActionCreated))
	assert.Zero(t, len(d.queue))
	shutdown(t, d)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := newTestDispatcher("http://127.0.0.1:0", func(c *config.Config) { c.WebhookQueueSize = 1 })

	// no workers running, so the queue never drains
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			d.Dispatch(context.Background(), sampleEvent(scheduling.ActionCreated))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Equal(t, 1, len(d.queue))
}

func TestDispatcher_DispatchAfterShutdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	d.Start()
	shutdown(t, d)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), sampleEvent(scheduling.ActionCreated))
	})
	require.NoError(t, d.Shutdown(context.Background()))
}
