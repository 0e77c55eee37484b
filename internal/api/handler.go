// Package api exposes the calendar session over a JSON HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/auth"
	"github.com/jw6ventures/studycal/internal/http/errors"
	"github.com/jw6ventures/studycal/internal/logging"
	"github.com/jw6ventures/studycal/internal/session"
	"github.com/jw6ventures/studycal/internal/store"
)

const maxBodyBytes = 1 << 20

// ShareStore grants and revokes visibility of one user's events to another.
type ShareStore interface {
	Grant(ctx context.Context, ownerID, viewerID string) error
	Revoke(ctx context.Context, ownerID, viewerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]store.Share, error)
}

// Handler serves the calendar API for the authenticated user.
type Handler struct {
	sessions *session.Manager
	shares   ShareStore
	log      logrus.FieldLogger
}

func NewHandler(sessions *session.Manager, shares ShareStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{sessions: sessions, shares: shares, log: log}
}

// Routes registers every endpoint on r. Callers mount r behind the
// authentication middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/calendar", func(r chi.Router) {
		r.Get("/", h.Calendar)
		r.Get("/state", h.CalendarState)
		r.Get("/agenda.ics", h.ExportAgenda)
		r.Put("/view", h.SetView)
		r.Put("/date", h.SetDate)
		r.Post("/navigate", h.Navigate)
		r.Patch("/preferences", h.UpdatePreferences)
		r.Post("/filters/colors/{color}", h.ToggleColor)
		r.Put("/filters/user", h.SelectUser)
		r.Delete("/filters", h.ClearFilters)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.DeleteEvent)
	})

	r.Route("/drag", func(r chi.Router) {
		r.Get("/", h.DragState)
		r.Post("/start", h.StartDrag)
		r.Post("/hover", h.HoverDrag)
		r.Post("/drop", h.Drop)
		r.Post("/cancel", h.CancelDrag)
	})

	r.Route("/shares", func(r chi.Router) {
		r.Get("/", h.ListShares)
		r.Put("/{viewerID}", h.GrantShare)
		r.Delete("/{viewerID}", h.RevokeShare)
	})
}

// session resolves the caller's calendar session, writing the error response
// itself when that fails.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		errors.JSON(w, http.StatusUnauthorized, errors.Body{Error: "authentication required"})
		return nil, false
	}
	s, err := h.sessions.Get(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.Write(w, r, logging.FromRequest(h.log, r), err)
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error, msg string) {
	errors.BadRequest(w, r, logging.FromRequest(h.log, r), err, msg)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
