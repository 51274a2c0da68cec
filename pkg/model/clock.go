package model

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day with minute precision
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a 24h "HH:MM" string
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the number of minutes since midnight
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On combines the time of day with a calendar date in loc
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ClockOf returns the time of day of t
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// CivilDate returns t's calendar date as midnight UTC, the form DATE columns round-trip as
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
