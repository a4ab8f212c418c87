package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-platform/internal/config"
	"docqa-platform/internal/telemetry"
	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"
)

// SetupAskRoutes registers the question answering endpoint.
func SetupAskRoutes(router *gin.Engine, cfg *config.Config, answerer *services.Answerer, metrics *telemetry.Metrics) {
	router.POST("/api/ask", HandleAsk(cfg, answerer, metrics))
}

// HandleAsk answers a question grounded in ingested documents. Omitted
// tuning fields fall back to configured defaults; an explicit zero is
// respected.
func HandleAsk(cfg *config.Config, answerer *services.Answerer, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		params := models.AskParams{
			Query:      req.Query,
			DocumentID: req.DocumentID,
			K:          cfg.DefaultTopK,
			Threshold:  cfg.DefaultMinSimilarity,
		}
		if req.K != nil {
			params.K = *req.K
		}
		if req.Threshold != nil {
			params.Threshold = *req.Threshold
		}

		result, err := answerer.Ask(c.Request.Context(), params)
		if err != nil {
			outcome := string(services.GetErrorType(err))
			if outcome == "" {
				outcome = "internal"
			}
			metrics.RecordQuestion(outcome)
			respondDomainError(c, err)
			return
		}

		outcome := "answered"
		if result.RetrievedCount == 0 {
			outcome = "no_context"
		}
		metrics.RecordQuestion(outcome)

		c.JSON(http.StatusOK, result)
	}
}
