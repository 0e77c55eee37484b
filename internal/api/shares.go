package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/auth"
	"github.com/jw6ventures/studycal/internal/http/errors"
	"github.com/jw6ventures/studycal/internal/store"
)

// ListShares returns the users who can see the caller's events.
func (h *Handler) ListShares(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	shares, err := h.shares.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if shares == nil {
		shares = []store.Share{}
	}
	errors.JSON(w, http.StatusOK, shares)
}

// GrantShare lets viewerID see the caller's events. The viewer's open
// session is dropped so its next request loads the shared events.
func (h *Handler) GrantShare(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	viewerID := chi.URLParam(r, "viewerID")
	if viewerID == "" || viewerID == user.ID {
		h.badRequest(w, r, fmt.Errorf("share with %q", viewerID), "cannot share a calendar with its owner")
		return
	}
	if err := h.shares.Grant(r.Context(), user.ID, viewerID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.sessions.Drop(viewerID)
	h.log.WithFields(logrus.Fields{"owner": user.ID, "viewer": viewerID}).Info("calendar shared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	viewerID := chi.URLParam(r, "viewerID")
	if err := h.shares.Revoke(r.Context(), user.ID, viewerID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.sessions.Drop(viewerID)
	h.log.WithFields(logrus.Fields{"owner": user.ID, "viewer": viewerID}).Info("calendar share revoked")
	w.WriteHeader(http.StatusNoContent)
}
