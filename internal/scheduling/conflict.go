package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type ConflictResult struct {
	Conflict      bool       `json:"conflict"`
	ConflictingID *uuid.UUID `json:"conflicting_id,omitempty"`
}

// ConflictChecker decides whether a (patient, date, time) slot is already taken in a practice.
// Two different patients may share a slot; the system has no staff or room resources.
type ConflictChecker struct {
	repo Repository
}

func NewConflictChecker(repo Repository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// CheckConflict reports the first appointment occupying the slot other than exclude.
// Pass uuid.Nil as exclude for new bookings. Store errors come back as ErrLookupFailed and
// must not be read as "no conflict".
func (c *ConflictChecker) CheckConflict(ctx context.Context, slot Slot, exclude uuid.UUID) (ConflictResult, error) {
	existing, err := c.repo.FindAppointmentsAtSlot(ctx, slot)
	if err != nil {
		return ConflictResult{}, lookupFailed("find appointments at slot", err)
	}

	for _, a := range existing {
		if a.ID == exclude {
			continue
		}
		id := a.ID
		return ConflictResult{Conflict: true, ConflictingID: &id}, nil
	}

	return ConflictResult{}, nil
}
