package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/domain/apperror"
	"crosspost/infrastructure/logger"
)

const internalErrorMessage = "internal server error"

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation *apperror.ValidationError
		csrf       *apperror.CsrfError
	)
	switch {
	case errors.Is(err, apperror.ErrUnauthorized), errors.As(err, &csrf):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// abortWithError writes {"error": ...}. Server-side failures are logged and
// answered with a generic message.
func abortWithError(ctx *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		var cfg *apperror.ConfigurationError
		if !errors.As(err, &cfg) {
			msg = internalErrorMessage
		}
		logger.GetLogger().
			WithField("path", ctx.FullPath()).
			WithField("error", err).
			Error("Request failed")
	}
	ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
}
