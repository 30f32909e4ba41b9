package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical details and the request id, then
// returned to the client as an ErrorResponse built from core.MapError.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/gridcheck/internal/core"
	"github.com/JonMunkholm/gridcheck/internal/csvimport"
	"github.com/JonMunkholm/gridcheck/internal/logging"
)

var (
	// errBadRequest marks request bodies and parameters the handlers cannot use.
	errBadRequest = errors.New("bad request")

	errRuleNotFound = errors.New("no such rule")
)

var (
	badRequest = core.UserMessage{
		Message: "The request could not be read",
		Action:  "Check the JSON body and URL parameters",
		Code:    "REQ001",
	}
	ruleNotFound = core.UserMessage{
		Message: "Rule does not exist",
		Action:  "List the rules of the column and use one of their ids",
		Code:    "REQ003",
	}
	rateLimited = core.UserMessage{
		Message: "Too many requests",
		Action:  "Wait a minute before trying again",
		Code:    "REQ002",
	}
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes the mapped user message.
// The status code is derived from the error when statusCode is 0.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}

	userMsg := core.MapError(err)
	switch {
	case errors.Is(err, errBadRequest):
		userMsg = badRequest
	case errors.Is(err, errRuleNotFound):
		userMsg = ruleNotFound
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, csvimport.ErrNoHeader):
		return http.StatusBadRequest
	case errors.Is(err, csvimport.ErrTooManyRows):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrRowNotFound), errors.Is(err, core.ErrColumnNotFound), errors.Is(err, errRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrReadOnlyCell):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidRule), errors.Is(err, core.ErrInvalidColumns), errors.Is(err, core.ErrInvalidThrottling):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrGridClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
