package api

import (
	"io"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/view"
)

const productID = "-//studycal//calendar export//EN"

// ExportAgenda serves the events of the current view range as an iCalendar
// feed. Color and user filters apply.
func (h *Handler) ExportAgenda(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	body := agendaICS(s.Range(), s.Events(), time.Now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agenda.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// agendaICS encodes the events overlapping rng. Invalid intervals are left out.
func agendaICS(rng view.Range, events []calendar.Event, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		if ev.Validate() != nil || !calendar.Overlaps(ev.Start, ev.End, rng.Start, rng.End) {
			continue
		}
		vev := cal.AddEvent(ev.ID)
		vev.SetDtStampTime(stamp)
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		vev.SetProperty(ics.ComponentProperty("COLOR"), string(ev.Color.OrDefault()))
		if ev.OwnerUserID != "" {
			vev.SetProperty(ics.ComponentProperty("X-STUDYCAL-OWNER"), ev.OwnerUserID)
		}
	}
	return cal.Serialize()
}
