package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrInvalidSignature, http.StatusUnauthorized},
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrProfileNotFound, http.StatusNotFound},
		{ErrInvalidJobID, http.StatusBadRequest},
		{ErrCaptureStartFailed, http.StatusBadGateway},
		{ErrRecordingRegistrationFailed, http.StatusInternalServerError},
		{ErrMisconfigured, http.StatusInternalServerError},
		{fmt.Errorf("start egress: %w", ErrCaptureStartFailed), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMessage_HidesCause(t *testing.T) {
	err := fmt.Errorf("%w: dial tcp 10.0.0.1:443: connection refused", ErrCaptureStartFailed)
	assert.Equal(t, "capture start failed", Message(err))
	assert.Equal(t, "internal server error", Message(errors.New("pq: secret detail")))
}
