package upstream

import "fmt"

// ErrorKind classifies an upstream failure. Each kind maps 1:1 to a
// caller-visible error code in the gateway layer.
type ErrorKind string

const (
	KindQuotaExceeded    ErrorKind = "quota_exceeded"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindEmptyResponse    ErrorKind = "empty_response"
	KindUnclassified     ErrorKind = "unclassified"
)

// Error is a classified upstream failure. Message is short and safe to
// show a client; the raw upstream body travels in Cause and is only
// logged.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // upstream HTTP status, 0 when no response was received
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches two upstream errors by kind, so callers can test with
// errors.Is(err, &Error{Kind: KindQuotaExceeded}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

// classifyStatus maps an upstream HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch status {
	case 429:
		return KindQuotaExceeded
	case 401, 403:
		return KindUnauthorized
	case 404:
		return KindModelUnavailable
	default:
		return KindUnclassified
	}
}
