package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/apperr"
)

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and an {"error": msg} body. Unclassified
// failures are not echoed to the client.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	log := s.log.WithError(err).WithFields(logrus.Fields{
		"path":           c.FullPath(),
		"kind":           kind.String(),
		"correlation_id": c.GetString(correlationKey),
	})

	msg := apperr.Message(err)
	switch kind {
	case apperr.KindInvariant:
		log.WithField("alert", true).Error("invariant violated")
	case apperr.KindUnknown:
		log.Error("request failed")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(statusOf(kind), gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
