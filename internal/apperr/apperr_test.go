package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"cgl-backend/internal/apperr"
)

func TestStatusAndMessage(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	for _, tc := range []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "connect failure hides cause", err: apperr.Wrap(apperr.ConnectFailure, cause, ""), status: http.StatusServiceUnavailable, message: "Service Unavailable"},
		{name: "too large", err: apperr.Wrap(apperr.PayloadTooLarge, cause, ""), status: http.StatusRequestEntityTooLarge, message: "Payload Too Large"},
		{name: "custom message", err: apperr.New(apperr.Invalid, "title is required"), status: http.StatusBadRequest, message: "title is required"},
		{name: "bare kind", err: apperr.NotFound, status: http.StatusNotFound, message: "Not Found"},
		{name: "unclassified", err: cause, status: http.StatusInternalServerError, message: "Internal Server Error"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, apperr.Status(tc.err))
			require.Equal(t, tc.message, apperr.Message(tc.err))
		})
	}
}

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", apperr.Wrap(apperr.ConnectFailure, cause, "database"))

	require.ErrorIs(t, err, apperr.ConnectFailure)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, apperr.NotFound)
	require.Equal(t, apperr.ConnectFailure, apperr.KindOf(err))
	require.Equal(t, "outer: database: boom", err.Error())
}
