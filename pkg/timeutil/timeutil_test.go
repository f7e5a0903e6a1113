package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoursToDuration(t *testing.T) {
	assert.Equal(t, 24*time.Hour, HoursToDuration(24))
	assert.Equal(t, 90*time.Minute, HoursToDuration(1.5))
	assert.Equal(t, time.Duration(0), HoursToDuration(0))
	assert.InDelta(t, 1.5, DurationToHours(90*time.Minute), 1e-9)
}

func TestDayBoundariesUTC(t *testing.T) {
	ts := time.Date(2025, 3, 10, 18, 45, 12, 500, time.FixedZone("UTC+5", 5*3600))

	start := StartOfDayUTC(ts)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)

	end := EndOfDayUTC(ts)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, time.UTC, end.Location())
}

func TestIsSameDayUTC(t *testing.T) {
	// 23:30 UTC and 00:30 UTC next day are different UTC days even though
	// a local zone may see them as the same evening.
	t1 := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC)
	assert.False(t, IsSameDayUTC(t1, t2))
	assert.True(t, IsSameDayUTC(t1, t1.Add(20*time.Minute)))
}

func TestDaysBetweenUTC(t *testing.T) {
	t1 := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 12, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetweenUTC(t1, t2))
	assert.Equal(t, 2, DaysBetweenUTC(t2, t1))
	assert.Equal(t, 0, DaysBetweenUTC(t1, t1))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h23m45s", FormatDuration(time.Hour+23*time.Minute+45*time.Second+300*time.Millisecond))
	assert.Equal(t, "15s", FormatDuration(15*time.Second))
	assert.Equal(t, "2m0s", FormatDuration(2*time.Minute))
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", FormatRelative(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", FormatRelative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", FormatRelative(now.Add(-3*time.Hour), now))
	assert.Equal(t, "yesterday", FormatRelative(now.Add(-25*time.Hour), now))
	assert.Equal(t, "5d ago", FormatRelative(now.Add(-5*24*time.Hour), now))
	assert.Equal(t, "2mo ago", FormatRelative(now.Add(-65*24*time.Hour), now))
}

func TestParseDateUTC(t *testing.T) {
	ts, err := ParseDateUTC("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), ts)
	assert.Equal(t, "2025-03-10", FormatDateUTC(ts))

	_, err = ParseDateUTC("10.03.2025")
	assert.Error(t, err)
}
