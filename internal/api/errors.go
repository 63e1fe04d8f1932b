package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Sentinel errors for message handling.
var (
	// ErrMalformedMessage is returned when a frame cannot be decoded or does
	// not have the expected shape.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrNotAuthenticated is returned when a connection carries no valid session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotEdgeSession is returned when a notification arrives on a session
	// that is not bound to an edge.
	ErrNotEdgeSession = errors.New("session is not bound to an edge")
)

// Error represents a structured HTTP error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrCodeInternal is the code of every 500 response.
const ErrCodeInternal = "internal_error"

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

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
