package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Presentation layouts for attendance times.
const (
	TimeLayout           = "15:04:05"
	DateLayout           = "2006-01-02"
	DateTimeLayout       = "2006-01-02 15:04:05"
	DateTimeOffsetLayout = "2006-01-02 15:04:05Z07:00"
)

var ErrInvalidDate = errors.New("invalid date")

// Clock returns the current instant. Services take one so tests can pin "now".
type Clock func() time.Time

// Window is the half-open instant range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// TodayWindow returns the local calendar day containing now.
func TodayWindow(now time.Time, loc *time.Location) Window {
	return DayWindow(now.In(loc), loc)
}

// DayWindow returns [local midnight, next local midnight) for the year, month
// and day fields of date, read as a calendar date in loc. The next midnight is
// built from the calendar, not by adding 24h, so DST days come out as 23 or 25
// hours long.
func DayWindow(date time.Time, loc *time.Location) Window {
	y, m, d := date.Date()
	return Window{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc).UTC(),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC(),
	}
}

// SpanWindow covers every local calendar day from the day of `from` through the
// day of `to`, both inclusive.
func SpanWindow(from, to time.Time, loc *time.Location) Window {
	return Window{
		Start: DayWindow(from, loc).Start,
		End:   DayWindow(to, loc).End,
	}
}

// LocalDate truncates t to its calendar date in loc. The result is midnight UTC
// carrying the local year, month and day, which is how Postgres DATE values
// round-trip through pgx.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToLocalDisplay renders t in loc. Presentation only.
func ToLocalDisplay(t time.Time, loc *time.Location, layout string) string {
	return t.In(loc).Format(layout)
}

var (
	offsetLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		DateLayout,
	}
)

// ParseFlexibleDate accepts ISO-8601 date or date-time strings, with either a
// "T" or a single space between date and time. Values without a UTC offset are
// read as wall-clock time in loc. The returned instant is in UTC.
func ParseFlexibleDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	if len(s) > len(DateLayout) && s[len(DateLayout)] == ' ' {
		s = s[:len(DateLayout)] + "T" + s[len(DateLayout)+1:]
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}
