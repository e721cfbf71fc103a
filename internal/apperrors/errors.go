// Package apperrors defines the coordinator's error taxonomy and its HTTP mapping.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated             = errors.New("unauthenticated")
	ErrForbidden                   = errors.New("forbidden")
	ErrSessionNotFound             = errors.New("no active shift found")
	ErrProfileNotFound             = errors.New("user profile not found")
	ErrNotFound                    = errors.New("not found")
	ErrCaptureStartFailed          = errors.New("capture start failed")
	ErrRecordingRegistrationFailed = errors.New("recording registration failed")
	ErrStopFailed                  = errors.New("capture stop failed")
	ErrInvalidSignature            = errors.New("invalid signature")
	ErrInvalidJobID                = errors.New("job_id is required")
	ErrInvalidRequest              = errors.New("invalid request")
	ErrMisconfigured               = errors.New("service not configured")
)

// HTTPStatus maps an error from the taxonomy to a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidJobID), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrCaptureStartFailed), errors.Is(err, ErrStopFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err: the taxonomy sentinel text,
// never the wrapped cause.
func Message(err error) string {
	for _, s := range []error{
		ErrUnauthenticated, ErrForbidden, ErrSessionNotFound, ErrProfileNotFound, ErrNotFound,
		ErrCaptureStartFailed, ErrRecordingRegistrationFailed, ErrStopFailed, ErrInvalidSignature,
		ErrInvalidJobID, ErrInvalidRequest, ErrMisconfigured,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal server error"
}
