package view

import (
	"sort"
	"time"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/layout"
	"github.com/jw6ventures/studycal/internal/prefs"
)

// Model is everything the UI needs to draw the current view.
type Model struct {
	State    State              `json:"state"`
	Range    Range              `json:"range"`
	Days     []layout.DayLayout `json:"days,omitempty"`
	Month    []MonthCell        `json:"month,omitempty"`
	Agenda   *Agenda            `json:"agenda,omitempty"`
	Rejected []layout.Rejection `json:"rejected,omitempty"`
}

// MonthCell is one day of the month grid.
type MonthCell struct {
	Date    time.Time        `json:"date"`
	InMonth bool             `json:"inMonth"`
	Events  []calendar.Event `json:"events"`
}

// Agenda is the flat list rendering of a horizon.
type Agenda struct {
	GroupBy prefs.AgendaGroupBy `json:"groupBy"`
	Events  []calendar.Event    `json:"events"`
	Groups  []AgendaGroup       `json:"groups"`
}

// AgendaGroup is one date or color section of the agenda.
type AgendaGroup struct {
	Key    string           `json:"key"`
	Date   *time.Time       `json:"date,omitempty"`
	Color  calendar.Color   `json:"color,omitempty"`
	Events []calendar.Event `json:"events"`
}

// Render filters events and derives the model for the current mode. Each
// visible day of the day and week views is laid out on its own.
func (c *Controller) Render(events []calendar.Event) Model {
	visible := calendar.VisibleEvents(events, c.filters)
	valid, rejected := partitionValid(visible)

	m := Model{State: c.State(), Range: c.Range(), Rejected: rejected}
	switch c.prefs.View {
	case prefs.ViewDay, prefs.ViewWeek:
		m.Days = make([]layout.DayLayout, 0, len(m.Range.Days))
		for _, day := range m.Range.Days {
			m.Days = append(m.Days, layout.LayoutDay(day, valid, c.cfg.Layout))
		}
	case prefs.ViewMonth:
		m.Month = monthCells(m.Range, c.selectedDate.Month(), valid)
	case prefs.ViewAgenda:
		m.Agenda = buildAgenda(m.Range, c.prefs.AgendaGroupBy, valid)
	}

	for _, r := range rejected {
		c.log.WithField("event_id", r.EventID).WithError(r.Err).Warn("event excluded from calendar view")
	}
	return m
}

func partitionValid(events []calendar.Event) ([]calendar.Event, []layout.Rejection) {
	valid := make([]calendar.Event, 0, len(events))
	var rejected []layout.Rejection
	for _, e := range events {
		if err := calendar.ValidateInterval(e.Start, e.End); err != nil {
			rejected = append(rejected, layout.Rejection{EventID: e.ID, Err: err, Reason: err.Error()})
			continue
		}
		valid = append(valid, e)
	}
	return valid, rejected
}

func sortChronological(events []calendar.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	})
}

func eventsWithin(events []calendar.Event, start, end time.Time) []calendar.Event {
	out := make([]calendar.Event, 0)
	for _, e := range events {
		if calendar.Overlaps(e.Start, e.End, start, end) {
			out = append(out, e)
		}
	}
	sortChronological(out)
	return out
}

func monthCells(r Range, month time.Month, events []calendar.Event) []MonthCell {
	cells := make([]MonthCell, 0, len(r.Days))
	for _, day := range r.Days {
		cells = append(cells, MonthCell{
			Date:    day,
			InMonth: day.Month() == month,
			Events:  eventsWithin(events, day, day.AddDate(0, 0, 1)),
		})
	}
	return cells
}

func buildAgenda(r Range, groupBy prefs.AgendaGroupBy, events []calendar.Event) *Agenda {
	a := &Agenda{GroupBy: groupBy, Events: eventsWithin(events, r.Start, r.End)}

	if groupBy == prefs.GroupByColor {
		byColor := make(map[calendar.Color][]calendar.Event)
		for _, e := range a.Events {
			c := e.Color.OrDefault()
			byColor[c] = append(byColor[c], e)
		}
		for _, c := range calendar.Colors {
			if list, ok := byColor[c]; ok {
				a.Groups = append(a.Groups, AgendaGroup{Key: string(c), Color: c, Events: list})
			}
		}
		return a
	}

	index := make(map[string]int)
	for _, e := range a.Events {
		// Events that began before the horizon are listed on its first day.
		day := calendar.StartOfDay(e.Start)
		if day.Before(r.Start) {
			day = r.Start
		}
		key := day.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			d := day
			a.Groups = append(a.Groups, AgendaGroup{Key: key, Date: &d})
			i = len(a.Groups) - 1
			index[key] = i
		}
		a.Groups[i].Events = append(a.Groups[i].Events, e)
	}
	return a
}
