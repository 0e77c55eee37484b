package drag

import (
	"time"
)

const (
	DefaultSnapMinutes   = 15
	DefaultCoarseMinutes = 30
	minutesPerDay        = 24 * 60
)

// Grid describes the snapping resolution.
type Grid struct {
	SnapMinutes   int
	CoarseMinutes int
}

func (g Grid) withDefaults() Grid {
	if g.SnapMinutes <= 0 || g.SnapMinutes > minutesPerDay {
		g.SnapMinutes = DefaultSnapMinutes
	}
	if g.CoarseMinutes <= 0 || g.CoarseMinutes%g.SnapMinutes != 0 {
		g.CoarseMinutes = 2 * g.SnapMinutes
	}
	return g
}

// IncrementFor picks the grid an event snaps to. An event whose duration and
// start time both sit on the coarse grid stays on it.
func (g Grid) IncrementFor(start time.Time, duration time.Duration) int {
	g = g.withDefaults()
	startMinute := start.Hour()*60 + start.Minute()
	if start.Second() == 0 && start.Nanosecond() == 0 &&
		duration%(time.Duration(g.CoarseMinutes)*time.Minute) == 0 &&
		startMinute%g.CoarseMinutes == 0 {
		return g.CoarseMinutes
	}
	return g.SnapMinutes
}

// SnapMinute rounds minute to the nearest multiple of increment, half up, and
// clamps it to the last slot of the day.
func SnapMinute(minute, increment int) int {
	if increment <= 0 {
		increment = DefaultSnapMinutes
	}
	if minute < 0 {
		minute = 0
	}
	snapped := (minute + increment/2) / increment * increment
	last := (minutesPerDay - 1) / increment * increment
	if snapped > last {
		snapped = last
	}
	return snapped
}

// at builds the wall-clock instant minute minutes after midnight of day.
func at(day time.Time, minute int, loc *time.Location) time.Time {
	day = day.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
}

// keepTimeOfDay moves ref's time of day onto day.
func keepTimeOfDay(day, ref time.Time, loc *time.Location) time.Time {
	day = day.In(loc)
	ref = ref.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), loc)
}
