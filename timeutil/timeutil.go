// Package timeutil converts between wall-clock time-of-day and integer
// minutes or seconds since local midnight.
//
// Grounded on stsobj.time_to_minutes/time_to_seconds/minutes_to_time/
// seconds_to_time from the original stskit source (original_source/planung.py
// imports them). The Python functions raise on a missing time-of-day
// attribute; here that is modeled as an explicit Minutes/Seconds zero value
// with an Ok flag, threaded through arithmetic as absence rather than as an
// exception.
package timeutil

import "time"

// Minutes is a possibly-absent count of minutes since local midnight.
type Minutes struct {
	Value int
	Ok    bool
}

// Seconds is a possibly-absent count of seconds since local midnight.
type Seconds struct {
	Value int
	Ok    bool
}

// SomeMinutes wraps a concrete minute value.
func SomeMinutes(v int) Minutes { return Minutes{Value: v, Ok: true} }

// NoMinutes is the absent value.
func NoMinutes() Minutes { return Minutes{} }

// SomeSeconds wraps a concrete second value.
func SomeSeconds(v int) Seconds { return Seconds{Value: v, Ok: true} }

// NoSeconds is the absent value.
func NoSeconds() Seconds { return Seconds{} }

// Add returns m+d if m is present, otherwise absence.
func (m Minutes) Add(d int) Minutes {
	if !m.Ok {
		return m
	}
	return SomeMinutes(m.Value + d)
}

// Sub returns m-o if both are present, otherwise absence.
func (m Minutes) Sub(o Minutes) Minutes {
	if !m.Ok || !o.Ok {
		return Minutes{}
	}
	return SomeMinutes(m.Value - o.Value)
}

// Max returns the larger of two present minute values; absence propagates.
func Max(a, b Minutes) Minutes {
	if !a.Ok || !b.Ok {
		return Minutes{}
	}
	if a.Value >= b.Value {
		return a
	}
	return b
}

// TimeToMinutes converts a time.Time's time-of-day to minutes since midnight.
func TimeToMinutes(t time.Time) Minutes {
	if t.IsZero() {
		return Minutes{}
	}
	return SomeMinutes(t.Hour()*60 + t.Minute())
}

// TimeToSeconds converts a time.Time's time-of-day to seconds since midnight.
func TimeToSeconds(t time.Time) Seconds {
	if t.IsZero() {
		return Seconds{}
	}
	return SomeSeconds(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// MinutesToTime renders a minute count since midnight back to a time-of-day,
// pinned to the zero date so only hour/minute are meaningful.
func MinutesToTime(m int) time.Time {
	m = ((m % 1440) + 1440) % 1440
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC)
}

// SecondsToTime renders a second count since midnight back to a time-of-day.
func SecondsToTime(s int) time.Time {
	s = ((s % 86400) + 86400) % 86400
	return time.Date(0, 1, 1, s/3600, (s%3600)/60, s%60, 0, time.UTC)
}
