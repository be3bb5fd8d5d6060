package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredefinedErrorsAreNotShared(t *testing.T) {
	a := ErrRemoteStatus.With("status", 500)
	b := ErrRemoteStatus.With("status", 404)

	assert.Equal(t, 500, a.Context["status"])
	assert.Equal(t, 404, b.Context["status"])
	assert.Nil(t, ErrRemoteStatus.Context)
}

func TestIsMatchesWrappedCopies(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := fmt.Errorf("capture: %w", ErrRemoteUnreachable.Wrap(cause))

	assert.True(t, stderrors.Is(err, ErrRemoteUnreachable))
	assert.False(t, stderrors.Is(err, ErrRemoteStatus))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsType(err, ErrTypeAcquisition))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrMalformedImage, http.StatusBadRequest},
		{ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{ErrAcquisitionCancelled.Wrap(context.Canceled), http.StatusServiceUnavailable},
		{ErrMarkerNotFound, http.StatusBadGateway},
		{ErrRemoteUnreachable, http.StatusBadGateway},
		{ErrInvalidHost, http.StatusBadRequest},
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrInvalidConfig, http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", ErrPhotoNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestUserMessageFallsBackToMessage(t *testing.T) {
	assert.Equal(t, "photo not found", ErrPhotoNotFound.GetUserMessage())
	assert.Contains(t, ErrSessionNotFound.GetUserMessage(), "expired")
}
