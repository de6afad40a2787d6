package places

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure.
type ErrorKind int

const (
	// KindUnavailable covers transport failures, 5xx responses and unknown statuses.
	KindUnavailable ErrorKind = iota + 1
	// KindDenied is REQUEST_DENIED, usually a bad or restricted key.
	KindDenied
	// KindQuotaExceeded is OVER_QUERY_LIMIT.
	KindQuotaExceeded
	// KindInvalidRequest is INVALID_REQUEST.
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindDenied:
		return "denied"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindInvalidRequest:
		return "invalid_request"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ProviderError is returned for any failed provider call.
type ProviderError struct {
	Kind     ErrorKind
	Endpoint string
	Status   string // provider status string or HTTP status, when known
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("places %s: %s", e.Endpoint, e.Kind)
	if e.Status != "" {
		msg += " (" + e.Status + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches a ProviderError of the same kind so callers can write
// errors.Is(err, places.ErrDenied).
func (e *ProviderError) Is(target error) bool {
	var pe *ProviderError
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Endpoint == "" && pe.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrUnavailable    = &ProviderError{Kind: KindUnavailable}
	ErrDenied         = &ProviderError{Kind: KindDenied}
	ErrQuotaExceeded  = &ProviderError{Kind: KindQuotaExceeded}
	ErrInvalidRequest = &ProviderError{Kind: KindInvalidRequest}
)

// ErrUnknownEndpoint indicates Fetch was called with an unsupported endpoint.
var ErrUnknownEndpoint = errors.New("unknown places endpoint")

// KindOf returns the kind of a provider error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// statusError maps a provider status string onto an error.
// OK and ZERO_RESULTS are successes and return nil.
func statusError(endpoint, status, message string) error {
	var kind ErrorKind
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "REQUEST_DENIED":
		kind = KindDenied
	case "OVER_QUERY_LIMIT":
		kind = KindQuotaExceeded
	case "INVALID_REQUEST":
		kind = KindInvalidRequest
	default:
		kind = KindUnavailable
	}
	return &ProviderError{Kind: kind, Endpoint: endpoint, Status: status, Message: message}
}
