package view

import (
	"time"

	"github.com/jw6ventures/studycal/internal/calendar"
)

// Range is a half-open span of whole calendar days.
type Range struct {
	Start time.Time   `json:"start"`
	End   time.Time   `json:"end"`
	Days  []time.Time `json:"days"`
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func spanDays(start time.Time, n int) Range {
	start = calendar.StartOfDay(start)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return Range{Start: start, End: start.AddDate(0, 0, n), Days: days}
}

// DayRange is the single calendar day containing d.
func DayRange(d time.Time) Range {
	return spanDays(d, 1)
}

// WeekStartOf returns the most recent weekStart day on or before d.
func WeekStartOf(d time.Time, weekStart time.Weekday) time.Time {
	d = calendar.StartOfDay(d)
	back := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDate(0, 0, -back)
}

// WeekRange is the 7-day window beginning at the week start on or before d.
func WeekRange(d time.Time, weekStart time.Weekday) Range {
	return spanDays(WeekStartOf(d, weekStart), 7)
}

// MonthGrid covers d's month padded with leading and trailing days of the
// adjacent months so that it consists of complete weeks.
func MonthGrid(d time.Time, weekStart time.Weekday) Range {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	last := first.AddDate(0, 1, -1)
	start := WeekStartOf(first, weekStart)
	weekEnd := (int(weekStart) + 6) % 7
	trailing := (weekEnd - int(last.Weekday()) + 7) % 7
	end := last.AddDate(0, 0, trailing+1)

	n := 0
	for t := start; t.Before(end); t = t.AddDate(0, 0, 1) {
		n++
	}
	return spanDays(start, n)
}

// AgendaRange is the horizon of the agenda list starting on d's day.
func AgendaRange(d time.Time, horizonDays int) Range {
	if horizonDays <= 0 {
		horizonDays = DefaultAgendaHorizonDays
	}
	return spanDays(d, horizonDays)
}

// addMonths moves d by n months, clamping the day to the target month length.
func addMonths(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month(), 1, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
	target := first.AddDate(0, n, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return target.AddDate(0, 0, day-1)
}
