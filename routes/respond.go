package routes

import (
	"errors"

	"github.com/gin-gonic/gin"

	"docqa-platform/internal/logger"
	"docqa-platform/services"
	"docqa-platform/utils"
)

// respondDomainError maps a service-layer error onto an HTTP response.
// Provider failures surface as 502 so callers can tell our fault from the
// model vendor's.
func respondDomainError(c *gin.Context, err error) {
	var de *services.DomainError
	if !errors.As(err, &de) {
		logger.Error("unclassified error", "error", err, "path", c.FullPath())
		utils.RespondWithInternalError(c, "Something went wrong", nil)
		return
	}

	switch de.Type {
	case services.ErrorTypeValidation:
		utils.RespondWithBadRequest(c, de.Message, nil)
	case services.ErrorTypeNotFound:
		utils.RespondWithNotFound(c, de.Message)
	case services.ErrorTypeEmbedding, services.ErrorTypeGeneration:
		logger.Error("upstream provider error", "error", err, "path", c.FullPath())
		utils.RespondWithUpstreamError(c, string(de.Type), de.Message)
	case services.ErrorTypeParse:
		logger.Error("model output unusable", "error", err, "path", c.FullPath())
		utils.RespondWithUpstreamError(c, string(de.Type), de.Message)
	default:
		logger.Error("internal error", "error", err, "path", c.FullPath())
		utils.RespondWithInternalError(c, de.Message, nil)
	}
}
