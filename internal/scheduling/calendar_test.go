package scheduling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2025-03-12", d.AddDays(2).String())
	assert.Equal(t, 31, NewDate(2025, time.April, 10).DaysSince(d))

	_, err = ParseDate("10.03.2025")
	assert.Error(t, err)

	// late evening in Berlin is still the same calendar day
	assert.Equal(t, "2025-03-10", DateOf(time.Date(2025, time.March, 10, 23, 30, 0, 0, berlin)).String())
}

func TestDate_DaysSinceAcrossDST(t *testing.T) {
	assert.Equal(t, 7, NewDate(2025, time.April, 3).DaysSince(NewDate(2025, time.March, 27)))
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}

	out, err := json.Marshal(wrapper{D: NewDate(2025, time.March, 10)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-03-10"}`, string(out))

	out, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":null}`, string(out))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &w))
	assert.Equal(t, NewDate(2024, time.February, 29), w.D)
	assert.Error(t, json.Unmarshal([]byte(`{"d":"2025-02-30"}`), &w))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, 9, tod.Hour())
	assert.Equal(t, 5, tod.Minute())
	assert.Equal(t, "09:05", tod.String())
	assert.True(t, tod.Valid())
	assert.False(t, TimeOfDay(24*60).Valid())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	at := tod.On(NewDate(2025, time.March, 10), berlin)
	assert.Equal(t, time.Date(2025, time.March, 10, 9, 5, 0, 0, berlin), at)
}
