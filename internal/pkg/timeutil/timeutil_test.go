package timeutil

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestTodayWindow_Jakarta(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")

	// 2024-03-05 23:30 UTC is already 2024-03-06 06:30 in Jakarta.
	now := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)
	w := TodayWindow(now, jakarta)

	assert.Equal(t, time.Date(2024, 3, 5, 17, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 3, 6, 17, 0, 0, 0, time.UTC), w.End)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End))
}

func TestDayWindow_UsesCalendarFieldsOfDate(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")

	w := DayWindow(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), jakarta)
	assert.Equal(t, time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
}

func TestDayWindow_DSTTransitions(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	spring := DayWindow(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), ny)
	assert.Equal(t, 23*time.Hour, spring.End.Sub(spring.Start))
	assert.Equal(t, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), spring.Start)

	fall := DayWindow(time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC), ny)
	assert.Equal(t, 25*time.Hour, fall.End.Sub(fall.Start))
}

func TestSpanWindow(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")

	w := SpanWindow(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		jakarta,
	)
	assert.Equal(t, time.Date(2024, 2, 29, 17, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 3, 3, 17, 0, 0, 0, time.UTC), w.End)
}

func TestLocalDate(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")

	got := LocalDate(time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), jakarta)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), got)
}

func TestToLocalDisplay(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")
	instant := time.Date(2024, 3, 5, 1, 2, 3, 0, time.UTC)

	assert.Equal(t, "08:02:03", ToLocalDisplay(instant, jakarta, TimeLayout))
	assert.Equal(t, "2024-03-05 08:02:03+07:00", ToLocalDisplay(instant, jakarta, DateTimeOffsetLayout))
	assert.Equal(t, "2024-03-05 01:02:03Z", ToLocalDisplay(instant, time.UTC, DateTimeOffsetLayout))
}

func TestParseFlexibleDate(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")

	cases := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-05T08:00:00Z", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)},
		{"2024-03-05T08:00:00+07:00", time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
		{"2024-03-05 08:00:00+07:00", time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
		{"2024-03-05T08:00:00.250Z", time.Date(2024, 3, 5, 8, 0, 0, 250_000_000, time.UTC)},
		{"2024-03-05T08:00+07:00", time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
		{"2024-03-05T08:00:00", time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
		{"2024-03-05 08:00:00", time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
		{"2024-03-05 08:00", time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)},
		{"  2024-03-05  ", time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			got, err := ParseFlexibleDate(c.input, jakarta)
			require.NoError(t, err)
			assert.True(t, c.want.Equal(got), "got %s, want %s", got, c.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseFlexibleDate_Invalid(t *testing.T) {
	jakarta := mustLoad(t, "Asia/Jakarta")

	invalid := []string{
		"",
		"   ",
		"not a date",
		"2024-02-30",
		"2024-13-01",
		"05/03/2024",
		"2024-03-05  08:00:00",
		"2024-03-05T25:00:00",
	}
	for _, input := range invalid {
		_, err := ParseFlexibleDate(input, jakarta)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", input)
	}
}

func TestDisplayParseRoundTrip(t *testing.T) {
	zones := []string{"Asia/Jakarta", "UTC", "America/New_York", "Asia/Kolkata", "Pacific/Chatham"}
	instants := []time.Time{
		time.Date(2024, 3, 10, 6, 59, 59, 999_000_000, time.UTC),
		time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 16, 59, 59, 0, time.UTC),
		time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
	}

	for _, name := range zones {
		loc := mustLoad(t, name)
		for _, instant := range instants {
			rendered := ToLocalDisplay(instant, loc, DateTimeOffsetLayout)
			parsed, err := ParseFlexibleDate(rendered, loc)
			require.NoError(t, err, rendered)
			assert.True(t, instant.Truncate(time.Second).Equal(parsed), "%s in %s: got %s", instant, name, parsed)
		}
	}

	// Without an offset the wall clock is read back in the same zone.
	jakarta := mustLoad(t, "Asia/Jakarta")
	for _, instant := range instants {
		rendered := ToLocalDisplay(instant, jakarta, DateTimeLayout)
		parsed, err := ParseFlexibleDate(rendered, jakarta)
		require.NoError(t, err)
		assert.True(t, instant.Truncate(time.Second).Equal(parsed))

		day, err := ParseFlexibleDate(ToLocalDisplay(instant, jakarta, DateLayout), jakarta)
		require.NoError(t, err)
		assert.Equal(t, DayWindow(instant.In(jakarta), jakarta).Start, day)
	}
}
