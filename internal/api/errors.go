package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/researchops/runcore/internal/runstate"
)

// writeServiceError maps a repository/runstate error to the HTTP response
// spec.md §7 prescribes, grounded on pkg/api/errors.go's mapServiceError
// (translated from an echo.HTTPError return into a direct gin write, since
// this module's router is gin, not echo).
func writeServiceError(c *gin.Context, err error) {
	var notFound *runstate.RunNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
		return
	}

	var illegal *runstate.IllegalTransitionError
	if errors.As(err, &illegal) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "illegal_transition", "message": err.Error()})
		return
	}

	var retryNotAllowed *runstate.RetryNotAllowedError
	if errors.As(err, &retryNotAllowed) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "illegal_transition", "message": err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "worker_error", "message": err.Error()})
}
