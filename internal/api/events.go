package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/eventstore"
	"github.com/jw6ventures/studycal/internal/http/errors"
)

// eventRequest carries wall-clock dates in the session's time zone.
type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Color       string `json:"color"`
	OwnerUserID string `json:"ownerUserId"`
}

func (req eventRequest) interval(loc *time.Location) (time.Time, time.Time, error) {
	start, err := calendar.ParseWallClock(req.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := calendar.ParseWallClock(req.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (req eventRequest) color(fallback calendar.Color) (calendar.Color, error) {
	if req.Color == "" {
		return fallback.OrDefault(), nil
	}
	return calendar.ParseColor(req.Color)
}

// ListEvents returns the events visible under the current filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	events := s.Events()
	if events == nil {
		events = []calendar.Event{}
	}
	errors.JSON(w, http.StatusOK, events)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	start, end, err := req.interval(s.Location())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	color, err := req.color(calendar.ColorBlue)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ev, err := s.AddEvent(r.Context(), eventstore.NewEvent{
		Title:       req.Title,
		Description: req.Description,
		Start:       start,
		End:         end,
		Color:       color,
		OwnerUserID: req.OwnerUserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.JSON(w, http.StatusCreated, ev)
}

// UpdateEvent replaces an event's fields. An empty color keeps the stored
// value; the owner cannot be changed.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	current, found := s.Event(id)
	if !found {
		h.fail(w, r, calendar.ErrEventNotFound)
		return
	}
	start, end, err := req.interval(s.Location())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	color, err := req.color(current.Color)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.OwnerUserID != "" && req.OwnerUserID != current.OwnerUserID {
		h.fail(w, r, fmt.Errorf("%w: owner of %s cannot be changed", calendar.ErrForbidden, id))
		return
	}

	updated := current
	updated.Title = req.Title
	updated.Description = req.Description
	updated.Start = start
	updated.End = end
	updated.Color = color
	if err := s.UpdateEvent(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	errors.JSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RemoveEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
