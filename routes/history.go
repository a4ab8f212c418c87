package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docqa-platform/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SetupHistoryRoutes registers Q&A history listing and export, both globally
// and scoped under a document.
func SetupHistoryRoutes(router *gin.Engine, historyService *services.HistoryService) {
	history := router.Group("/api/history")

	history.GET("", HandleListHistory(historyService))
	history.GET("/export", HandleExportHistory(historyService))

	documents := router.Group("/api/documents")

	documents.GET("/:id/history", HandleListHistory(historyService))
	documents.GET("/:id/history/export", HandleExportHistory(historyService))
}

// historyScope resolves the document filter: the path parameter on
// document-scoped routes, the document_id query parameter on global ones.
func historyScope(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Query("document_id")
}

// HandleListHistory returns recent exchanges, newest first, optionally
// scoped to one document.
func HandleListHistory(historyService *services.HistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil && l > 0 {
			limit = l
		}

		exchanges, err := historyService.List(c.Request.Context(), historyScope(c), limit)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"count":     len(exchanges),
			"exchanges": exchanges,
		})
	}
}

// HandleExportHistory streams the Q&A history as an Excel workbook.
func HandleExportHistory(historyService *services.HistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil && l > 0 {
			limit = l
		}

		data, err := historyService.ExportXLSX(c.Request.Context(), historyScope(c), limit)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		filename := "qa_history_" + time.Now().Format("20060102_150405") + ".xlsx"
		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Header("Content-Length", strconv.Itoa(len(data)))
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}
