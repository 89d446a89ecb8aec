package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day in minutes since midnight. 24:00 is a valid end of day.
type Clock int

const (
	MinutesPerHour = 60
	EndOfDay       = Clock(24 * MinutesPerHour)
)

func ClockAt(hour, minute int) Clock {
	return Clock(hour*MinutesPerHour + minute)
}

// ClockOf extracts the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return ClockAt(t.Hour(), t.Minute())
}

// ParseClock accepts "H", "HH", "H:MM" and "HH:MM".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time of day")
	}

	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", hourPart)
	}
	minute := 0
	if hasMinutes {
		if len(minutePart) != 2 {
			return 0, fmt.Errorf("invalid minutes %q", minutePart)
		}
		minute, err = strconv.Atoi(minutePart)
		if err != nil {
			return 0, fmt.Errorf("invalid minutes %q", minutePart)
		}
	}

	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time of day out of range: %s", s)
	}
	return ClockAt(hour, minute), nil
}

func (c Clock) Hour() int   { return int(c) / MinutesPerHour }
func (c Clock) Minute() int { return int(c) % MinutesPerHour }

func (c Clock) IsWholeHour() bool {
	return c.Minute() == 0
}

func (c Clock) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, date.Location()).Add(time.Duration(c) * time.Minute)
}

func (c Clock) Value() (driver.Value, error) {
	return c.String(), nil
}

func (c *Clock) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case int64:
		*c = Clock(v)
		return nil
	default:
		return fmt.Errorf("unsupported clock type %T", src)
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
