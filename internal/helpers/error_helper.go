package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/ridehail/internal/apperrors"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func HTTPStatusCode(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusPaymentRequired:
		return "payment_required"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	}
	return "internal_error"
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error: customMessage,
		Code:  HTTPStatusCode(statusCode),
	})
}

// RespondWithAppError maps err through apperrors. Validation and processor
// messages are sent as they are; anything else is replaced by fallback so
// database internals never reach the client.
func RespondWithAppError(c *gin.Context, err error, fallback string) {
	status := apperrors.StatusCode(err)
	message := fallback

	var validationErr *apperrors.ValidationError
	var upstreamErr *apperrors.UpstreamError
	switch {
	case errors.As(err, &validationErr):
		message = validationErr.Message
	case errors.As(err, &upstreamErr) && upstreamErr.Service == "stripe":
		message = upstreamErr.Error()
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", apperrors.Code(err),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: message,
		Code:  apperrors.Code(err),
	})
}
