// Package apperr defines the closed error taxonomy callers of the transport,
// location and domain layers observe. Raw transport errors never cross a
// service boundary; they are mapped to one of the kinds below first.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is one member of the closed error taxonomy.
type Kind string

const (
	PermissionDenied    Kind = "PERMISSION_DENIED"
	LocationUnavailable Kind = "LOCATION_UNAVAILABLE"
	Timeout             Kind = "TIMEOUT"
	NetworkError        Kind = "NETWORK_ERROR"
	GeocodingFailed     Kind = "GEOCODING_FAILED"
	InvalidAddress      Kind = "INVALID_ADDRESS"
	Unauthorized        Kind = "UNAUTHORIZED"
	RateLimited         Kind = "RATE_LIMITED"
	NotFound            Kind = "NOT_FOUND"
	ServerError         Kind = "SERVER_ERROR"
	GenericError        Kind = "GENERIC_ERROR"
	ValidationError     Kind = "VALIDATION_ERROR"
)

// default user-facing messages
var messages = map[Kind]string{
	PermissionDenied:    "Unable to get your location. Please enable location services.",
	LocationUnavailable: "Your location is currently unavailable.",
	Timeout:             "Request timed out. Please try again.",
	NetworkError:        "Network connection error. Please check your internet connection.",
	GeocodingFailed:     "Unable to resolve that address.",
	InvalidAddress:      "Please enter a valid address.",
	Unauthorized:        "Invalid API credentials.",
	RateLimited:         "Too many requests. Please wait before trying again.",
	NotFound:            "Requested resource not found.",
	ServerError:         "Server error. Please try again later.",
	GenericError:        "Something went wrong. Please try again.",
	ValidationError:     "Please fill in all required fields.",
}

// Error carries a taxonomy kind, a human readable message and optionally the
// underlying cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(apperr.NotFound))
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with its default message.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Message: DefaultMessage(kind)}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a kind with its default message.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: DefaultMessage(kind), Err: err}
}

// DefaultMessage returns the user-facing message for a kind.
func DefaultMessage(kind Kind) string {
	if msg, ok := messages[kind]; ok {
		return msg
	}
	return messages[GenericError]
}

// KindOf extracts the kind of err. Context deadline errors are reported as
// Timeout; anything outside the taxonomy is GenericError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return GenericError
}

// Message returns the string a store should keep for err. Only the message of
// a taxonomy error is kept; foreign errors collapse to the fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if fallback != "" {
		return fallback
	}
	return DefaultMessage(GenericError)
}

// FromStatus maps an HTTP status code to the taxonomy. detail is used as the
// message for statuses that have no dedicated kind.
func FromStatus(status int, detail string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return New(Unauthorized)
	case http.StatusTooManyRequests:
		return New(RateLimited)
	case http.StatusNotFound:
		return New(NotFound)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return New(ServerError)
	default:
		if detail == "" {
			return New(GenericError)
		}
		return &Error{Kind: GenericError, Message: detail}
	}
}
