// Package webhook delivers appointment events to the practice's configured endpoint.
// Delivery is asynchronous: Dispatch only enqueues, a small worker pool posts the events
// and retries transient failures with exponential backoff.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/practice-scheduling/internal/config"
	"github.com/hackgods/practice-scheduling/internal/metrics"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-ID"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// SignPayload returns the hex-encoded HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a header value of the form "sha256=<hex>".
func VerifySignature(payload []byte, secret, header string) bool {
	expected := "sha256=" + SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(header))
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithInitialInterval sets the wait before the first retry.
func WithInitialInterval(iv time.Duration) Option {
	return func(d *Dispatcher) { d.initialInterval = iv }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher implements scheduling.Dispatcher.
type Dispatcher struct {
	url             string
	secret          string
	workers         int
	maxAttempts     int
	initialInterval time.Duration
	client          *http.Client
	logger          zerolog.Logger

	queue chan scheduling.Event

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(cfg config.Config, opts ...Option) *Dispatcher {
	workers := cfg.WebhookWorkers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.WebhookQueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	attempts := cfg.WebhookMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		url:             cfg.WebhookURL,
		secret:          cfg.WebhookSecret,
		workers:         workers,
		maxAttempts:     attempts,
		initialInterval: 500 * time.Millisecond,
		client:          &http.Client{Timeout: timeout},
		logger:          log.Logger,
		queue:           make(chan scheduling.Event, queueSize),
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enabled reports whether a target URL is configured.
func (d *Dispatcher) Enabled() bool {
	return d.url != ""
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	if !d.Enabled() {
		d.logger.Info().Msg("webhook url not configured, appointment events will not be delivered")
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Dispatch enqueues ev without blocking. A full or closed queue drops the event.
func (d *Dispatcher) Dispatch(_ context.Context, ev scheduling.Event) {
	if !d.Enabled() {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher stopped")
		return
	}

	select {
	case d.queue <- ev:
		metrics.WebhookQueueDepth.Inc()
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev scheduling.Event, reason string) {
	metrics.WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
	d.logger.Warn().
		Str("action", string(ev.Action)).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("reason", reason).
		Msg("webhook event dropped")
}

// Shutdown stops accepting events and waits for queued ones to be delivered. When ctx expires
// first, in-flight retries are abandoned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("webhook drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		metrics.WebhookQueueDepth.Dec()
		if err := d.deliver(d.ctx, ev); err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
			d.logger.Error().Err(err).
				Str("action", string(ev.Action)).
				Str("appointment_id", ev.AppointmentID.String()).
				Str("practice_id", ev.PracticeID.String()).
				Msg("webhook delivery failed")
			continue
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	}
}

// deliver posts ev, retrying network errors, 429 and 5xx responses.
func (d *Dispatcher) deliver(ctx context.Context, ev scheduling.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	deliveryID := uuid.NewString()

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderEvent, string(ev.Action))
		req.Header.Set(HeaderDelivery, deliveryID)
		req.Header.Set(HeaderTimestamp, time.Now().UTC().Format(time.RFC3339))
		if d.secret != "" {
			req.Header.Set(HeaderSignature, "sha256="+SignPayload(payload, d.secret))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("webhook endpoint rejected event with %d", resp.StatusCode))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialInterval
	b.MaxInterval = 30 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.maxAttempts-1)), ctx)

	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		d.logger.Warn().Err(err).
			Str("delivery_id", deliveryID).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("webhook delivery attempt failed")
	})
}
