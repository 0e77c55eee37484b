package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/http/errors"
	"github.com/jw6ventures/studycal/internal/prefs"
)

// Calendar returns the rendered model of the current view.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	errors.JSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) CalendarState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	errors.JSON(w, http.StatusOK, s.State())
}

type viewRequest struct {
	View string `json:"view"`
}

func (h *Handler) SetView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	mode, err := prefs.ParseViewMode(req.View)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SetView(r.Context(), mode); err != nil {
		h.fail(w, r, err)
		return
	}
	errors.JSON(w, http.StatusOK, s.State())
}

// dateRequest selects a date; a missing or null date leaves the selection as is.
type dateRequest struct {
	Date *string `json:"date"`
}

func (h *Handler) SetDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var selected *time.Time
	if req.Date != nil {
		d, err := calendar.ParseWallClock(*req.Date, s.Location())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		selected = &d
	}
	s.SetSelectedDate(selected)
	errors.JSON(w, http.StatusOK, s.State())
}

// navigateRequest moves by Step view-sized periods, or jumps to today.
type navigateRequest struct {
	Step  int  `json:"step"`
	Today bool `json:"today"`
}

func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if req.Today {
		s.Today()
	} else {
		s.Navigate(req.Step)
	}
	errors.JSON(w, http.StatusOK, s.State())
}

func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch prefs.Patch
	if err := decode(r, &patch); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	if err := patch.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ApplyPreferences(r.Context(), patch); err != nil {
		h.fail(w, r, err)
		return
	}
	errors.JSON(w, http.StatusOK, s.State())
}

func (h *Handler) ToggleColor(w http.ResponseWriter, r *http.Request) {
	color, err := calendar.ParseColor(chi.URLParam(r, "color"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ToggleColor(color)
	errors.JSON(w, http.StatusOK, s.State())
}

type userFilterRequest struct {
	UserID string `json:"userId"`
}

// SelectUser restricts the calendar to one owner; "all" or an empty id
// clears the restriction.
func (h *Handler) SelectUser(w http.ResponseWriter, r *http.Request) {
	var req userFilterRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = calendar.AllUsers
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.SelectUser(req.UserID)
	errors.JSON(w, http.StatusOK, s.State())
}

func (h *Handler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearFilters()
	errors.JSON(w, http.StatusOK, s.State())
}
