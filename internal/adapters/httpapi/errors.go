package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agromix/internal/core"
	"agromix/internal/mixing"
	"agromix/pkg/domain"
)

// statusForKind maps a classified persistence failure to an HTTP status.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindAuth:
		return http.StatusUnauthorized
	case core.KindRLS:
		return http.StatusForbidden
	case core.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(c *gin.Context, err error) {
	var verr *mixing.ValidationErrors
	var perr *core.PersistenceError
	var notFound domain.ErrNotFound
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "fields": verr.FieldErrors()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.Is(err, core.ErrUpdateUnsupported):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		c.JSON(statusForKind(perr.Info.Kind), gin.H{"error": perr.UserMessage()})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
