package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedhub/internal/utils"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{utils.ErrValidation, http.StatusBadRequest, "ValidationFailed"},
		{utils.ErrInvalidState, http.StatusBadRequest, "InvalidState"},
		{utils.ErrInvalidTransition, http.StatusBadRequest, "InvalidTransition"},
		{utils.ErrInvalidOrExpiredCode, http.StatusBadRequest, "InvalidOrExpiredCode"},
		{utils.ErrTooManyAttempts, http.StatusBadRequest, "TooManyAttempts"},
		{utils.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{utils.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{utils.ErrNotFound, http.StatusNotFound, "NotFound"},
		{utils.ErrConflict, http.StatusConflict, "Conflict"},
		{utils.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
		{errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op: %w", tc.err)
		status, code := statusFor(wrapped)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func serveError(err error) ErrorResponse {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, "test", err)
	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestRespondErrorDetails(t *testing.T) {
	t.Cleanup(func() { SetErrorDetails(true) })

	SetErrorDetails(true)
	body := serveError(errors.New("pq: connection refused"))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, "pq: connection refused", body.Details)

	SetErrorDetails(false)
	body = serveError(errors.New("pq: connection refused"))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Empty(t, body.Details)

	// client errors always carry their message
	body = serveError(fmt.Errorf("%w: subtotal must be greater than 0", utils.ErrValidation))
	assert.Contains(t, body.Error, "subtotal must be greater than 0")
	assert.Equal(t, "ValidationFailed", body.Code)
}

func TestPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query         string
		limit, offset int
	}{
		{"", 20, 0},
		{"?page=3&size=10", 10, 20},
		{"?page=0&size=-5", 20, 0},
		{"?size=1000", 100, 0},
		{"?page=abc", 20, 0},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/invoices"+tc.query, nil)
		limit, offset := pagination(c)
		assert.Equal(t, tc.limit, limit, tc.query)
		assert.Equal(t, tc.offset, offset, tc.query)
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("dueDate", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := "2025-07-01"
	got, err = parseDate("dueDate", &s)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *got)

	s = "2025-07-01T10:30:00Z"
	got, err = parseDate("dueDate", &s)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	s = "next tuesday"
	_, err = parseDate("dueDate", &s)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
