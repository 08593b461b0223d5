package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/orchestration"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Error *security.SecureError `json:"error"`
}

// fail maps err onto a status code and a sanitized body.
func (s *Server) fail(c *gin.Context, err error) {
	status, body := s.classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", security.SanitizeLogMessage(err.Error()),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func (s *Server) classify(err error) (int, *security.SecureError) {
	var verr *ValidationError
	var serr *security.SecureError
	switch {
	case errors.As(err, &serr):
		return statusFor(serr.Code), serr
	case errors.As(err, &verr):
		e := security.NewSecureError(security.ErrCodeValidation, verr.Error())
		e.Details = map[string]any{"field": verr.Field}
		return http.StatusBadRequest, e
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, security.NewSecureError(security.ErrCodeNotFound, "Session not found")
	case errors.Is(err, session.ErrInvalidID):
		return http.StatusBadRequest, security.NewSecureError(security.ErrCodeInvalidInput, "Invalid session ID format")
	case errors.Is(err, orchestration.ErrUnknownEvidence):
		return http.StatusBadRequest, security.NewSecureError(security.ErrCodeValidation, err.Error())
	case errors.Is(err, orchestration.ErrEmptyUtterance):
		return http.StatusBadRequest, security.NewSecureError(security.ErrCodeValidation, "user_input: must not be empty")
	case errors.Is(err, security.ErrMissingToken), errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized, security.NewSecureError(security.ErrCodeUnauthorized, "Invalid or missing token")
	case errors.Is(err, session.ErrStorageClosed):
		return http.StatusServiceUnavailable, security.SanitizeErrorWithCode(err, security.ErrCodeUnavailable, "Storage unavailable", s.opts.Debug)
	}
	return http.StatusInternalServerError, security.SanitizeError(err, s.opts.Debug)
}

func statusFor(code security.ErrorCode) int {
	switch code {
	case security.ErrCodeInvalidInput, security.ErrCodeValidation:
		return http.StatusBadRequest
	case security.ErrCodeNotFound:
		return http.StatusNotFound
	case security.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case security.ErrCodeForbidden:
		return http.StatusForbidden
	case security.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case security.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case security.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
