// Package layout places the events of a single calendar day into vertical
// columns so that events which overlap in time never overlap on screen.
package layout

import (
	"sort"
	"time"

	"github.com/jw6ventures/studycal/internal/calendar"
)

// DefaultPixelsPerMinute gives a 1440px tall day grid.
const DefaultPixelsPerMinute = 1.0

// Options controls the vertical scale of the produced geometry.
type Options struct {
	PixelsPerMinute float64
}

func (o Options) pixelsPerMinute() float64 {
	if o.PixelsPerMinute <= 0 {
		return DefaultPixelsPerMinute
	}
	return o.PixelsPerMinute
}

// Block is the rendered geometry of one event within one day.
type Block struct {
	Event calendar.Event `json:"event"`
	// Start and End are the event interval clipped to the day.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Column       int `json:"column"`
	OverlapWidth int `json:"overlapWidth"`

	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Rejection records an event excluded from layout.
type Rejection struct {
	EventID string `json:"eventId"`
	Err     error  `json:"-"`
	Reason  string `json:"reason"`
}

// DayLayout is the result of laying out one day.
type DayLayout struct {
	Day     time.Time `json:"day"`
	Columns int       `json:"columns"`
	// Groups[i] holds the events placed in column i, chronologically.
	Groups   [][]calendar.Event `json:"-"`
	Blocks   []Block            `json:"blocks"`
	Rejected []Rejection        `json:"rejected,omitempty"`
}

type item struct {
	event        calendar.Event
	start, end   time.Time
	column       int
	overlapWidth int
	isolated     bool
	cluster      int
}

// LayoutDay computes the column assignment and geometry for every event that
// intersects day's [00:00, 24:00) window. Events with an invalid interval are
// reported in Rejected and do not affect the others.
func LayoutDay(day time.Time, events []calendar.Event, opts Options) DayLayout {
	dayStart := calendar.StartOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	out := DayLayout{Day: dayStart}

	items := make([]item, 0, len(events))
	for _, e := range events {
		if err := calendar.ValidateInterval(e.Start, e.End); err != nil {
			out.Rejected = append(out.Rejected, Rejection{EventID: e.ID, Err: err, Reason: err.Error()})
			continue
		}
		if !calendar.Overlaps(e.Start, e.End, dayStart, dayEnd) {
			continue
		}
		items = append(items, item{
			event: e,
			start: latest(e.Start, dayStart),
			end:   earliest(e.End, dayEnd),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		if !a.end.Equal(b.end) {
			return a.end.Before(b.end)
		}
		return a.event.ID < b.event.ID
	})

	out.Groups = assignColumns(items)
	out.Columns = len(out.Groups)
	measureOverlap(items)
	divisors := clusterDivisors(items)

	ppm := opts.pixelsPerMinute()
	out.Blocks = make([]Block, 0, len(items))
	for _, it := range items {
		b := Block{
			Event:        it.event,
			Start:        it.start,
			End:          it.end,
			Column:       it.column,
			OverlapWidth: it.overlapWidth,
		}
		if it.isolated {
			b.Width, b.Left = 100, 0
		} else {
			b.Width = 100 / float64(divisors[it.cluster])
			b.Left = float64(it.column) * b.Width
		}
		startMin := minuteOfDay(it.start, dayStart, dayEnd)
		endMin := minuteOfDay(it.end, dayStart, dayEnd)
		b.Top = startMin * ppm
		b.Height = (endMin - startMin) * ppm
		out.Blocks = append(out.Blocks, b)
	}
	return out
}

// assignColumns is first-fit interval colouring over items sorted by start.
// It yields the minimum number of columns, equal to the largest set of
// mutually overlapping events.
func assignColumns(items []item) [][]calendar.Event {
	var groups [][]calendar.Event
	var columnEnds []time.Time
	for i := range items {
		col := -1
		for c, end := range columnEnds {
			if !end.After(items[i].start) {
				col = c
				break
			}
		}
		if col < 0 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, time.Time{})
			groups = append(groups, nil)
		}
		columnEnds[col] = items[i].end
		items[i].column = col
		groups[col] = append(groups[col], items[i].event)
	}
	return groups
}

// measureOverlap counts, for each event, the columns holding at least one
// event that really intersects it (its own column included). Column
// membership alone says nothing about overlap.
func measureOverlap(items []item) {
	for i := range items {
		cols := map[int]struct{}{items[i].column: {}}
		items[i].isolated = true
		for j := range items {
			if i == j {
				continue
			}
			if calendar.Overlaps(items[i].start, items[i].end, items[j].start, items[j].end) {
				cols[items[j].column] = struct{}{}
				items[i].isolated = false
			}
		}
		items[i].overlapWidth = len(cols)
	}
}

// clusterDivisors groups items into connected overlap clusters and returns,
// per cluster, the largest overlap width found in it. Sharing one divisor
// across a cluster keeps the horizontal ranges of overlapping events disjoint
// when their individual overlap widths differ.
func clusterDivisors(items []item) []int {
	var divisors []int
	var clusterEnd time.Time
	for i := range items {
		if i == 0 || !items[i].start.Before(clusterEnd) {
			divisors = append(divisors, 1)
			clusterEnd = items[i].end
		} else if items[i].end.After(clusterEnd) {
			clusterEnd = items[i].end
		}
		c := len(divisors) - 1
		items[i].cluster = c
		if items[i].overlapWidth > divisors[c] {
			divisors[c] = items[i].overlapWidth
		}
	}
	return divisors
}

// minuteOfDay converts a clipped instant to wall-clock minutes since midnight.
func minuteOfDay(t, dayStart, dayEnd time.Time) float64 {
	if !t.Before(dayEnd) {
		return 24 * 60
	}
	if !t.After(dayStart) {
		return 0
	}
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
