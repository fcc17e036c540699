package web

// errors.go is the single exit path for handler failures. The technical
// error is logged with the request id; the client gets a stable
// {error, message, action, code} body from menu.MapError. Bulk validation
// failures additionally carry their per-row details.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/platewise/menuboard/internal/logging"
	"github.com/platewise/menuboard/internal/menu"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Action    string          `json:"action,omitempty"`
	Code      string          `json:"code"`
	RowErrors []menu.RowError `json:"rowErrors,omitempty"`
}

// respondError logs the technical error and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := menu.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	var rowErrs *menu.RowErrors
	if errors.As(err, &rowErrs) {
		resp.RowErrors = rowErrs.Errors
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		valErr  *menu.ValidationError
		rowErrs *menu.RowErrors
	)
	switch {
	case errors.Is(err, menu.ErrDraftNotFound),
		errors.Is(err, menu.ErrItemNotFound),
		errors.Is(err, menu.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.As(err, &valErr), errors.As(err, &rowErrs):
		return http.StatusBadRequest
	case errors.Is(err, errBulkBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondErrorJSON writes a mapped message without a handler in scope.
func respondErrorJSON(w http.ResponseWriter, msg menu.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v and writes it with the given status. Encode errors
// are logged only; headers are already on the wire.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
