package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_MaterializedDates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	practiceID := uuid.New()
	rule := RecurringRule{ID: uuid.New(), PracticeID: practiceID}
	require.NoError(t, repo.CreateRecurringRule(ctx, &rule))

	for _, day := range []int{12, 10, 10, 20} {
		require.NoError(t, repo.RecordMaterialized(ctx, practiceID, rule.ID, NewDate(2025, time.March, day)))
	}

	got, err := repo.MaterializedDates(ctx, practiceID, rule.ID, NewDate(2025, time.March, 10), NewDate(2025, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, []Date{NewDate(2025, time.March, 10), NewDate(2025, time.March, 12)}, got)

	got, err = repo.MaterializedDates(ctx, uuid.New(), rule.ID, NewDate(2025, time.March, 1), NewDate(2025, time.March, 31))
	require.NoError(t, err)
	assert.Empty(t, got, "other practices see nothing")

	err = repo.RecordMaterialized(ctx, uuid.New(), rule.ID, NewDate(2025, time.March, 11))
	assert.ErrorIs(t, err, ErrRuleNotFound)

	require.NoError(t, repo.DeleteRecurringRule(ctx, practiceID, rule.ID))
	got, err = repo.MaterializedDates(ctx, practiceID, rule.ID, NewDate(2025, time.March, 1), NewDate(2025, time.March, 31))
	require.NoError(t, err)
	assert.Empty(t, got)
}
