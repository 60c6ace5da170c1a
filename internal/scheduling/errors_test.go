package scheduling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesCode(t *testing.T) {
	err := ErrDuplicateBooking.WithMessage("custom")
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	assert.NotErrorIs(t, err, ErrSlotBusy)

	wrapped := fmt.Errorf("create: %w", err)
	assert.ErrorIs(t, wrapped, ErrDuplicateBooking)
	assert.Equal(t, "duplicate_booking", errorCode(wrapped))
	assert.Equal(t, "internal", errorCode(errors.New("boom")))
}

func TestLookupFailed(t *testing.T) {
	err := lookupFailed("load patient", errStoreDown)
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.ErrorIs(t, err, errStoreDown)
	assert.True(t, IsRetryable(err))

	// coded errors pass through untouched
	assert.Same(t, ErrPatientNotFound, lookupFailed("load patient", ErrPatientNotFound))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrRuleNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrAppointmentNotFound)))
	assert.False(t, IsNotFound(ErrDuplicateBooking))
	assert.False(t, IsRetryable(ErrDuplicateBooking))
	assert.True(t, IsRetryable(ErrSlotBusy))
}
