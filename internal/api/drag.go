package api

import (
	"net/http"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/drag"
	"github.com/jw6ventures/studycal/internal/http/errors"
	"github.com/jw6ventures/studycal/internal/session"
)

type startDragRequest struct {
	EventID string `json:"eventId"`
}

// targetRequest is a drop position. Day is a local date; Minute counts from
// midnight and only applies when HasTime is set.
type targetRequest struct {
	Day     string `json:"day"`
	Minute  int    `json:"minute"`
	HasTime bool   `json:"hasTime"`
}

func (t targetRequest) target(s *session.Session) (drag.Target, error) {
	day, err := calendar.ParseWallClock(t.Day, s.Location())
	if err != nil {
		return drag.Target{}, err
	}
	return drag.Target{Day: day, Minute: t.Minute, HasTime: t.HasTime}, nil
}

// dropRequest commits at Target; a null target cancels the drag.
type dropRequest struct {
	Target *targetRequest `json:"target"`
}

type dragStateResponse struct {
	State   drag.State    `json:"state"`
	Session *drag.Session `json:"session,omitempty"`
}

func (h *Handler) DragState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp := dragStateResponse{State: drag.Idle}
	if d, active := s.DragSession(); active {
		resp.State = d.State
		resp.Session = &d
	}
	errors.JSON(w, http.StatusOK, resp)
}

func (h *Handler) StartDrag(w http.ResponseWriter, r *http.Request) {
	var req startDragRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.StartDrag(req.EventID); err != nil {
		h.fail(w, r, err)
		return
	}
	d, _ := s.DragSession()
	errors.JSON(w, http.StatusOK, d)
}

// HoverDrag previews the interval a drop at the target would produce.
func (h *Handler) HoverDrag(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	t, err := req.target(s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	proposed, err := s.HoverDrag(t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.JSON(w, http.StatusOK, proposed)
}

func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, r, err, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var target *drag.Target
	if req.Target != nil {
		t, err := req.Target.target(s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		target = &t
	}
	res, err := s.Drop(r.Context(), target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.JSON(w, http.StatusOK, res)
}

func (h *Handler) CancelDrag(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CancelDrag(); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
