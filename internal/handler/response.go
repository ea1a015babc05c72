package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidRequest, http.StatusBadRequest},
	{domain.ErrInvalidJob, http.StatusBadRequest},
	{domain.ErrInvalidStatus, http.StatusBadRequest},
	{domain.ErrInvalidSignature, http.StatusBadRequest},
	{domain.ErrGatewayUnavailable, http.StatusBadGateway},
	{domain.ErrDuplicateOrInvalidTransaction, http.StatusConflict},
	{domain.ErrEscrowInsufficient, http.StatusUnprocessableEntity},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrForbidden, http.StatusForbidden},
}

// respondError writes the HTTP form of a service error. Unclassified errors
// are logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			msg := err.Error()
			// The gateway's own error text stays in the log.
			if m.err == domain.ErrGatewayUnavailable {
				logger.Warn().Err(err).Str("path", c.FullPath()).Msg("gateway unavailable")
				msg = m.err.Error()
			}
			c.JSON(m.status, gin.H{"error": msg})
			return
		}
	}
	logger.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// parsePagination reads page and limit; the services clamp them.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
