package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/drag"
	"github.com/jw6ventures/studycal/internal/prefs"
	"github.com/jw6ventures/studycal/internal/store"
)

// Body is the JSON error envelope.
type Body struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// Status maps a domain error to an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, calendar.ErrInvalidInterval),
		stderrors.Is(err, calendar.ErrUnknownColor),
		stderrors.Is(err, prefs.ErrInvalidPreference),
		stderrors.Is(err, drag.ErrInvalidTarget):
		return http.StatusBadRequest
	case stderrors.Is(err, calendar.ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, calendar.ErrEventNotFound),
		stderrors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, drag.ErrDragInProgress),
		stderrors.Is(err, drag.ErrNotDragging):
		return http.StatusConflict
	case stderrors.Is(err, calendar.ErrMutationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Write logs err and sends it as a JSON error. Server errors get a generic
// message; client errors carry err's text.
func Write(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	status := Status(err)
	requestID := middleware.GetReqID(r.Context())
	entry := log.WithFields(logrus.Fields{"status": status, "request_id": requestID}).WithError(err)

	message := err.Error()
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		entry.Error("request failed")
		message = "internal server error"
	case status == http.StatusBadGateway:
		entry.Warn("calendar mutation failed")
		message = "the change could not be saved"
	default:
		entry.Debug("request rejected")
	}
	JSON(w, status, Body{Error: message, RequestID: requestID})
}

// BadRequest rejects malformed input without inspecting its error chain.
func BadRequest(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error, clientMessage string) {
	requestID := middleware.GetReqID(r.Context())
	log.WithFields(logrus.Fields{"request_id": requestID}).WithError(err).Debug("bad request")
	JSON(w, http.StatusBadRequest, Body{Error: clientMessage, RequestID: requestID})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
