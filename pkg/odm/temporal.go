package odm

import (
	"fmt"
	"strconv"
	"time"
)

// Date is a calendar date rendered as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the date y-m-d in UTC.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current local date.
func Today() Date {
	y, m, d := time.Now().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.Local)}
}

func (d Date) Render() string { return d.Format(time.DateOnly) }

// Time is a clock time rendered as HH:MM:SS.
type Time struct {
	time.Time
}

// NewTime returns the clock time h:m:s.
func NewTime(h, m, s int) Time {
	return Time{time.Date(0, 1, 1, h, m, s, 0, time.UTC)}
}

func (t Time) Render() string { return t.Format(time.TimeOnly) }

// Timestamp is an instant rendered as POSIX seconds.
type Timestamp struct {
	time.Time
}

// Now returns the current instant.
func Now() Timestamp { return Timestamp{time.Now()} }

// FromUnix returns the instant sec seconds after the epoch.
func FromUnix(sec int64) Timestamp { return Timestamp{time.Unix(sec, 0)} }

func (t Timestamp) Render() string { return strconv.FormatInt(t.Unix(), 10) }

// Duration is a time delta rendered as {d}d{h}h{m}m{s}s. Sub-second parts
// are truncated; negative durations carry a leading minus sign.
type Duration time.Duration

func (d Duration) Render() string {
	sign := ""
	total := int64(time.Duration(d) / time.Second)
	if total < 0 {
		sign = "-"
		total = -total
	}
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	return fmt.Sprintf("%s%dd%dh%dm%ds", sign, days, hours, minutes, seconds)
}
