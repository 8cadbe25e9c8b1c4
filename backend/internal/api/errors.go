package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "channelfeed/backend/pkg/errors"
)

// statusOf maps an error category to its HTTP status
func statusOf(err error) int {
	t, ok := apperrors.TypeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch t {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		var verr *apperrors.ErrValidation
		if errors.As(err, &verr) && verr.TooLong {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotAuthorized, apperrors.ErrorTypeDuplicate:
		return http.StatusForbidden
	case apperrors.ErrorTypeStore:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders {"error": {"<key>": "<message>"}}. Retryable store
// failures carry a Retry-After hint.
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusServiceUnavailable && apperrors.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{apperrors.KeyOf(err): apperrors.MessageOf(err)},
	})
}

// badRequest reports a malformed request body or query.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": gin.H{"request": err.Error()},
	})
}
