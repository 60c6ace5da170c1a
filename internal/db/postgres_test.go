package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_Ordered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_scheduling.sql", names[0])
	assert.Contains(t, names, "002_rule_occurrences.sql")
}

func TestSchema_HasSlotUniqueness(t *testing.T) {
	sql, err := migrations.ReadFile("migrations/001_scheduling.sql")
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(sql),
		"CONSTRAINT appointments_slot_unique UNIQUE (practice_id, patient_id, appointment_date, appointment_time)"))
}

func TestSchema_RuleOccurrenceLedger(t *testing.T) {
	sql, err := migrations.ReadFile("migrations/002_rule_occurrences.sql")
	require.NoError(t, err)

	text := string(sql)
	assert.Contains(t, text, "PRIMARY KEY (rule_id, occurrence_date)")
	assert.Contains(t, text, "ON DELETE CASCADE")
	assert.Contains(t, text, "ON CONFLICT DO NOTHING", "the backfill must be safe to re-run")
}
