package tracker

import "time"

// Schedule is the weekly boundary a period ends on.
type Schedule struct {
	Weekday  time.Weekday
	Hour     int
	Location *time.Location
}

// DefaultSchedule ends periods on Sunday 00:00 Europe/Berlin, falling back
// to UTC when the zone database is unavailable.
func DefaultSchedule() Schedule {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}
	return Schedule{Weekday: time.Sunday, Hour: 0, Location: loc}
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// LastBoundary returns the latest boundary at or before now.
func (s Schedule) LastBoundary(now time.Time) time.Time {
	loc := s.location()
	local := now.In(loc)
	back := (int(local.Weekday()) - int(s.Weekday) + 7) % 7
	b := time.Date(local.Year(), local.Month(), local.Day()-back, s.Hour, 0, 0, 0, loc)
	if b.After(now) {
		b = time.Date(b.Year(), b.Month(), b.Day()-7, s.Hour, 0, 0, 0, loc)
	}
	return b
}

// NextBoundary returns the first boundary strictly after now.
func (s Schedule) NextBoundary(now time.Time) time.Time {
	last := s.LastBoundary(now)
	return time.Date(last.Year(), last.Month(), last.Day()+7, s.Hour, 0, 0, 0, s.location())
}
