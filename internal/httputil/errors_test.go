package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "User input is required.")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.OK {
		t.Error("expected ok=false")
	}
	if body.Code != "INVALID_INPUT" {
		t.Errorf("expected code INVALID_INPUT, got %q", body.Code)
	}
	if body.Error != "User input is required." {
		t.Errorf("unexpected error message %q", body.Error)
	}
	if body.RetryAfterSeconds != 0 {
		t.Errorf("expected retryAfterSeconds omitted/zero, got %d", body.RetryAfterSeconds)
	}
}

func TestWriteRateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	WriteRateLimited(w, "RATE_LIMITED", "Too many requests.", 42)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "42" {
		t.Errorf("expected Retry-After header 42, got %q", ra)
	}

	var body ErrorBody
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.RetryAfterSeconds != 42 {
		t.Errorf("expected retryAfterSeconds 42, got %d", body.RetryAfterSeconds)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if !body["ok"] {
		t.Error("expected ok=true")
	}
}
