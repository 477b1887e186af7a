package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request id; the client gets the
// mapped user message and code from core.MapError. Rejected batches are
// the exception: they answer 422 with the per-row errorList so callers can
// reconcile it against their edits.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/factoryinv/internal/core"
	"github.com/JonMunkholm/factoryinv/internal/grid"
	"github.com/JonMunkholm/factoryinv/internal/inventory"
	"github.com/JonMunkholm/factoryinv/internal/logging"
	"github.com/JonMunkholm/factoryinv/internal/sheet"
)

var errInvalidRequest = errors.New("invalid request")

// ErrorResponse is the JSON body of every non-batch error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by core or grid.
func statusFor(err error) int {
	var batchErr *inventory.BatchError
	switch {
	case errors.As(err, &batchErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrSubmitInFlight),
		errors.Is(err, grid.ErrSessionClosed),
		errors.Is(err, grid.ErrRowNotEditable):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, sheet.ErrNoHeader),
		errors.Is(err, core.ErrNoRows),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it. A zero status is derived from err.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= 500 || !core.IsUserFacing(err) {
		logger.Error("request error")
	} else {
		logger.Warn("request error")
	}

	var batchErr *inventory.BatchError
	if errors.As(err, &batchErr) {
		writeJSON(w, http.StatusUnprocessableEntity, batchErr)
		return
	}
	if status == http.StatusServiceUnavailable && errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "10")
	}
	respondErrorJSON(w, err, status)
}

// respondErrorJSON writes the mapped message for err without logging.
func respondErrorJSON(w http.ResponseWriter, err error, status int) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
