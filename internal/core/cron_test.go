package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	valid := []string{
		"* * * * *",
		"0 2 * * *",
		"*/15 * * * *",
		"0 9 * * 1-5",
		"30 4 1 * *",
	}
	for _, expr := range valid {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	invalid := []string{
		"",
		"not a cron",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
	}
	for _, expr := range invalid {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseScheduleRejectsDescriptors(t *testing.T) {
	for _, expr := range []string{"@daily", "@every 1h", " @hourly"} {
		_, err := ParseSchedule(expr)
		require.Error(t, err, expr)
		assert.Contains(t, err.Error(), "5-field")
	}
}

func TestNextAfter(t *testing.T) {
	base := time.Date(2024, 3, 10, 14, 30, 0, 0, time.Local)

	next, err := NextAfter("0 2 * * *", base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 2, 0, 0, 0, time.Local), next)

	// Strictly after: an instant exactly on a fire time yields the
	// following one.
	onFire := time.Date(2024, 3, 10, 2, 0, 0, 0, time.Local)
	next, err = NextAfter("0 2 * * *", onFire)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 2, 0, 0, 0, time.Local), next)

	_, err = NextAfter("bogus", base)
	assert.Error(t, err)
}

func TestNextOccurrences(t *testing.T) {
	schedule, err := ParseSchedule("0 * * * *")
	require.NoError(t, err)

	base := time.Date(2024, 3, 10, 14, 30, 0, 0, time.Local)
	times := NextOccurrences(schedule, base, 3)
	require.Len(t, times, 3)
	assert.Equal(t, time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local), times[0])
	assert.Equal(t, time.Date(2024, 3, 10, 16, 0, 0, 0, time.Local), times[1])
	assert.Equal(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.Local), times[2])
}
