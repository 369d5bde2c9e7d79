package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func readCloser(r io.Reader) io.ReadCloser { return io.NopCloser(r) }

func errorResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: readCloser(strings.NewReader(body))}
}

func TestParseResponseError_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"not found", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"gone"}}`, apperrors.ErrNotFound},
		{"bad request", http.StatusBadRequest, `{"error":{"code":"INVALID_INPUT","message":"bad"}}`, apperrors.ErrInvalidInput},
		{"unprocessable", http.StatusUnprocessableEntity, `plain text`, apperrors.ErrInvalidInput},
		{"conflict", http.StatusConflict, `{"error":{"code":"CONFLICT","message":"dup"}}`, apperrors.ErrConflict},
		{"forbidden", http.StatusForbidden, ``, apperrors.ErrUnauthorized},
		{"unavailable", http.StatusServiceUnavailable, `down`, apperrors.ErrServiceUnavail},
		{"throttled", http.StatusTooManyRequests, `slow down`, apperrors.ErrServiceUnavail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ParseResponseError(errorResponse(tc.status, tc.body), "order")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestParseResponseError_ServerErrorKeepsEnvelope(t *testing.T) {
	err := ParseResponseError(errorResponse(http.StatusInternalServerError, `{"error":{"code":"INTERNAL","message":"boom"}}`), "order")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order server error (500/INTERNAL): boom")

	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr))
}

func TestParseResponseError_OtherStatusKeepsCode(t *testing.T) {
	err := ParseResponseError(errorResponse(http.StatusPaymentRequired, `{"error":{"code":"PAYMENT_DECLINED","message":"declined"}}`), "order")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAYMENT_DECLINED", appErr.Code)
	assert.Equal(t, http.StatusPaymentRequired, appErr.Status)
	assert.Equal(t, "order: declined", appErr.Message)
}
