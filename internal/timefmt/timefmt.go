// Package timefmt converts between the time and date shapes the dashboard
// exchanges: 24-hour input ("14:30"), 12-hour storage ("02:30 PM"),
// ISO dates ("2025-01-15") and display strings ("Wed, Jan 15, 2025").
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// ISODate is the layout of event dates and group keys.
	ISODate = "2006-01-02"
	// DisplayDate is the long form used in date headers.
	DisplayDate = "Mon, Jan 2, 2006"
	// ShortDate is used for weekday columns.
	ShortDate = "Jan 2"
	// ClockLayout is what the clock tick publishes.
	ClockLayout = "03:04:05 PM"
	// EventTimeLayout is the canonical stored event time.
	EventTimeLayout = "03:04 PM"
)

var twelveHour = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*(AM|PM)\s*$`)

// ParseClock returns minutes since midnight for a 12-hour time such as
// "02:30 PM". 24-hour values ("14:30") are accepted too.
func ParseClock(s string) (int, error) {
	if m := twelveHour.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if hours < 1 || hours > 12 || minutes > 59 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		period := strings.ToUpper(m[3])
		if period == "PM" && hours != 12 {
			hours += 12
		}
		if period == "AM" && hours == 12 {
			hours = 0
		}
		return hours*60 + minutes, nil
	}
	return parse24(s)
}

// MinutesSinceMidnight is ParseClock that falls back to 0 for unparseable
// input, which is how sorting treats malformed times.
func MinutesSinceMidnight(s string) int {
	m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return m
}

// HourOf returns the hour of day in [0,23] for a 12-hour time string.
func HourOf(s string) (int, error) {
	m, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	return m / 60, nil
}

// To12Hour converts "14:30" to "02:30 PM". Empty input yields "".
// Values already in 12-hour form are normalised.
func To12Hour(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FromMinutes(m), nil
}

// FromMinutes renders minutes since midnight as "hh:mm AM".
func FromMinutes(m int) string {
	m = ((m % 1440) + 1440) % 1440
	hour, minute := m/60, m%60
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour12, minute, period)
}

// To24Hour converts "02:30 PM" to "14:30".
func To24Hour(s string) (string, error) {
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
}

func parse24(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// ParseDate reads an ISO date as a calendar day in loc. Building the value
// from its components keeps the day stable regardless of UTC offset.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(ISODate, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ISO returns the calendar day of t in its own location.
func ISO(t time.Time) string {
	return t.Format(ISODate)
}

// FormatDisplayDate turns "2025-01-15" into "Wed, Jan 15, 2025".
// Empty or malformed input yields "".
func FormatDisplayDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := ParseDate(s, time.UTC)
	if err != nil {
		return ""
	}
	return t.Format(DisplayDate)
}

// FormatClock is the clock tick rendering of t.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// At combines an ISO date and a 12-hour time into an instant in loc.
func At(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, m/60, m%60, 0, 0, day.Location()), nil
}
