package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/server/http/middleware"
)

// CurrentOperator extracts authenticated operator login from context.
func CurrentOperator(c *gin.Context) string {
	val, ok := c.Get(middleware.OperatorContextKey)
	if !ok {
		return ""
	}
	login, _ := val.(string)
	return login
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrInvalidState), errors.Is(err, domainErrors.ErrTerminalOrder):
		return http.StatusConflict
	case errors.Is(err, domainErrors.ErrInvalidOrder):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainErrors.ErrInvalidSignature), errors.Is(err, domainErrors.ErrInvalidNotification):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domainErrors.ErrConcurrentModification), errors.Is(err, domainErrors.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the status mapped from err. Internal errors carry no body.
func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatus(status)
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
