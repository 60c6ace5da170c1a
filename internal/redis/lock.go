package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	ErrLockUnavailable = errors.New("slot lock backend unavailable")
)

// SlotKey names one bookable slot: a patient at a date and time of day within a practice.
// Date and Time use the API forms, 2006-01-02 and 15:04.
type SlotKey struct {
	PracticeID uuid.UUID
	PatientID  uuid.UUID
	Date       string
	Time       string
}

// String is the Redis key. The practice sits in a hash tag so a practice's locks share a
// cluster slot.
func (k SlotKey) String() string {
	return fmt.Sprintf("slotlock:{%s}:%s:%sT%s", k.PracticeID, k.PatientID, k.Date, k.Time)
}

// Locker is used by the scheduling service to guard the check-then-write on a booking slot.
// The database uniqueness constraint stays authoritative; the lock only narrows the race.
type Locker interface {
	WithSlotLock(ctx context.Context, key SlotKey, fn func(ctx context.Context) error) error
}

// compareAndDelete drops the key only while it still holds our token, so a lock that expired
// and was taken by another booker is left alone.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSlotLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSlotLocker locks slots with SET NX PX. fn runs under a deadline of ttl so it cannot
// outlive its lock.
func NewRedisSlotLocker(client redis.UniversalClient, ttl time.Duration) Locker {
	return &redisSlotLocker{client: client, ttl: ttl}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, key SlotKey, fn func(ctx context.Context) error) error {
	name := key.String()
	token, err := l.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer l.release(context.WithoutCancel(ctx), name, token)

	lockedCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(lockedCtx)
}

func (l *redisSlotLocker) acquire(ctx context.Context, name string) (string, error) {
	token := uuid.NewString()
	err := l.client.SetArgs(ctx, name, token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrLockNotAcquired
	case err != nil:
		return "", fmt.Errorf("%w: acquire %s: %v", ErrLockUnavailable, name, err)
	}
	return token, nil
}

// release reports whether the key was ours. A failed release is left to the TTL.
func (l *redisSlotLocker) release(ctx context.Context, name, token string) bool {
	n, err := compareAndDelete.Run(ctx, l.client, []string{name}, token).Int()
	return err == nil && n == 1
}

// NoopLocker runs fn directly. Used when Redis is not configured and in tests.
type NoopLocker struct{}

func (NoopLocker) WithSlotLock(ctx context.Context, _ SlotKey, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
