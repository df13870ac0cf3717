package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorBody is the failure envelope for all API responses.
type ErrorBody struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// WriteJSON writes v with the given status and a JSON content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard failure envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{OK: false, Error: message, Code: code})
}

// WriteRateLimited writes a 429 with both the envelope's retryAfterSeconds
// field and a Retry-After header.
func WriteRateLimited(w http.ResponseWriter, code, message string, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteJSON(w, http.StatusTooManyRequests, ErrorBody{
		OK:                false,
		Error:             message,
		Code:              code,
		RetryAfterSeconds: retryAfterSeconds,
	})
}
