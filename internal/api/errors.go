package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeTimeout        = "timeout"
	ErrCodeUnknownCommand = "unknown_command"
	ErrCodeInvalidCommand = "invalid_command"
	ErrCodeDriverError    = "driver_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeCommandError maps a failed command to its HTTP status.
func writeCommandError(w http.ResponseWriter, err error) {
	status, code := commandStatus(commands.Classify(err))
	writeError(w, status, code, err.Error())
}

func commandStatus(outcome commands.Outcome) (int, string) {
	switch outcome {
	case commands.OutcomeNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case commands.OutcomeUnknownCommand:
		return http.StatusBadRequest, ErrCodeUnknownCommand
	case commands.OutcomeInvalid:
		return http.StatusBadRequest, ErrCodeInvalidCommand
	case commands.OutcomeBusy:
		return http.StatusTooManyRequests, ErrCodeRateLimited
	case commands.OutcomeTimeout:
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case commands.OutcomeUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case commands.OutcomeDriverError:
		return http.StatusBadGateway, ErrCodeDriverError
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
