package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"prepcuet/internal/domain"
)

// writeError maps service errors onto HTTP responses. Anything unrecognized
// is a server error and is logged.
func writeError(c *gin.Context, err error) {
	var (
		verrs    validator.ValidationErrors
		notReady *domain.NotReadyError
	)
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
	case errors.Is(err, domain.ErrMissingIdentifiers), errors.Is(err, domain.ErrMissingBroadcastFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, domain.ErrAttemptNotFound), errors.Is(err, domain.ErrTestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &notReady):
		c.JSON(http.StatusTooEarly, gin.H{
			"error":             domain.ErrResultNotReady.Error(),
			"resultAvailableAt": notReady.AvailableAt.UnixMilli(),
		})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}

// writeBindError reports a request body that could not be decoded or validated.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
