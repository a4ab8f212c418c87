package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"
)

// SetupQuizRoutes registers quiz generation.
func SetupQuizRoutes(router *gin.Engine, quizService *services.QuizService) {
	router.POST("/api/documents/:id/quiz", HandleGenerateQuiz(quizService))
}

// HandleGenerateQuiz builds a multiple-choice quiz from a document's chunks.
// The body is optional; without one the configured default question count
// applies.
func HandleGenerateQuiz(quizService *services.QuizService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QuizRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		quiz, err := quizService.GenerateQuiz(c.Request.Context(), c.Param("id"), req.NumQuestions)
		if err != nil {
			respondDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, quiz)
	}
}
