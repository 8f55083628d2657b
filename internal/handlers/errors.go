package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wedhub/internal/logging"
	"wedhub/internal/utils"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// exposeDetails controls whether internal error text reaches clients.
// app turns it off in production.
var exposeDetails = true

func SetErrorDetails(on bool) {
	exposeDetails = on
}

var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{utils.ErrValidation, http.StatusBadRequest, "ValidationFailed"},
	{utils.ErrInvalidState, http.StatusBadRequest, "InvalidState"},
	{utils.ErrInvalidTransition, http.StatusBadRequest, "InvalidTransition"},
	{utils.ErrInvalidOrExpiredCode, http.StatusBadRequest, "InvalidOrExpiredCode"},
	{utils.ErrCodeExpired, http.StatusBadRequest, "CodeExpired"},
	{utils.ErrTooManyAttempts, http.StatusBadRequest, "TooManyAttempts"},
	{utils.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{utils.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{utils.ErrNotFound, http.StatusNotFound, "NotFound"},
	{utils.ErrConflict, http.StatusConflict, "Conflict"},
	{utils.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
}

// statusFor maps an error onto its HTTP status and kind name.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "InternalError"
}

func respondError(c *gin.Context, op string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Logger.WithError(err).Errorf("[%s] internal error", op)
		resp := ErrorResponse{Error: "Internal server error", Code: code}
		if exposeDetails {
			resp.Details = err.Error()
		}
		c.AbortWithStatusJSON(status, resp)
		return
	}
	logging.Logger.Debugf("[%s] %s: %v", op, code, err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// badRequest reports a body or parameter that could not be parsed.
func badRequest(c *gin.Context, op string, err error) {
	logging.Logger.Debugf("[%s] bad request: %v", op, err)
	resp := ErrorResponse{Error: "Invalid request", Code: "ValidationFailed"}
	if exposeDetails {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
