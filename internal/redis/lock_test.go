package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), mr
}

var (
	practiceA = uuid.MustParse("5f0c3c1e-8d6b-4f7a-9a3e-2b1d0c9e8f71")
	patientA  = uuid.MustParse("0b7e4d2a-1c3f-4e5d-8a9b-6c7d8e9f0a1b")
)

func slotAt(at string) SlotKey {
	return SlotKey{PracticeID: practiceA, PatientID: patientA, Date: "2025-03-10", Time: at}
}

func TestSlotKey_String(t *testing.T) {
	assert.Equal(t,
		"slotlock:{5f0c3c1e-8d6b-4f7a-9a3e-2b1d0c9e8f71}:0b7e4d2a-1c3f-4e5d-8a9b-6c7d8e9f0a1b:2025-03-10T09:00",
		slotAt("09:00").String())
	assert.NotEqual(t, slotAt("09:00").String(), slotAt("09:30").String())

	other := slotAt("09:00")
	other.PracticeID = uuid.New()
	assert.NotEqual(t, slotAt("09:00").String(), other.String())
}

func TestWithSlotLock_RunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)
	key := slotAt("09:00")

	ran := false
	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(key.String()))
		assert.Greater(t, mr.TTL(key.String()), time.Duration(0))
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(key.String()))
}

func TestWithSlotLock_ContendedSlot(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	err := locker.WithSlotLock(ctx, slotAt("10:00"), func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, slotAt("10:00"), func(context.Context) error {
			t.Fatal("nested lock on the same slot must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithSlotLock(ctx, slotAt("10:15"), func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLock_PropagatesCallbackError(t *testing.T) {
	locker, mr := newTestLocker(t)
	boom := errors.New("boom")

	key := slotAt("11:00")
	err := locker.WithSlotLock(context.Background(), key, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(key.String()))
}

func TestRelease_DoesNotDeleteForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := &redisSlotLocker{client: client, ttl: time.Second}
	name := slotAt("12:00").String()
	require.NoError(t, mr.Set(name, "someone-else"))

	assert.False(t, l.release(context.Background(), name, "my-token"))
	got, err := mr.Get(name)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithSlotLock_BackendDown(t *testing.T) {
	locker, mr := newTestLocker(t)
	mr.Close()

	err := locker.WithSlotLock(context.Background(), slotAt("13:00"), func(context.Context) error {
		t.Fatal("callback must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockUnavailable)
}
