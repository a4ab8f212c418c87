package routes

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/queue"
	"docqa-platform/internal/store"
	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"
)

// SetupDocumentRoutes registers the document lifecycle endpoints: upload,
// listing, status, chunk inspection, reingestion and deletion.
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	docs store.DocumentStore,
	chunks store.ChunkStore,
	history store.HistoryStore,
	storage *services.FileStorage,
	queueClient *asynq.Client,
) {
	documents := router.Group("/api/documents")

	documents.POST("", HandleDocumentUpload(cfg, docs, storage, queueClient))
	documents.GET("", HandleListDocuments(docs))
	documents.GET("/:id", HandleGetDocument(docs))
	documents.GET("/:id/status", HandleDocumentStatus(docs))
	documents.GET("/:id/chunks", HandleDocumentChunks(docs, chunks))
	documents.POST("/:id/reingest", HandleDocumentReingest(docs, queueClient))
	documents.DELETE("/:id", HandleDeleteDocument(docs, chunks, history))
}

// HandleDocumentUpload accepts a document file, stores it and enqueues the
// ingestion pipeline. The response returns immediately with a pending
// document; processing happens on the worker.
func HandleDocumentUpload(cfg *config.Config, docs store.DocumentStore, storage *services.FileStorage, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"no_file", "No file provided in 'file' form field", nil)
			return
		}
		defer file.Close()

		if err := services.ValidateUpload(header, cfg.MaxFileSize, cfg.AllowedTypes); err != nil {
			respondDomainError(c, err)
			return
		}

		// Read one byte past the limit so a spoofed Content-Length is caught.
		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize+1))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
			return
		}
		if int64(len(data)) > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest,
				"file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if err := services.SniffContent(contentType, data); err != nil {
			respondDomainError(c, err)
			return
		}

		filePath, err := storage.Save(data, header.Filename)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to save uploaded file", nil)
			return
		}

		now := time.Now()
		doc := &models.Document{
			ID:          uuid.NewString(),
			Title:       strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)),
			Filename:    header.Filename,
			ContentType: contentType,
			SizeBytes:   header.Size,
			Status:      models.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx := c.Request.Context()
		if err := docs.InsertDocument(ctx, doc); err != nil {
			storage.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		task, err := queue.NewDocumentProcessTask(doc.ID, filePath)
		if err != nil {
			storage.Remove(filePath)
			docs.DeleteDocument(ctx, doc.ID)
			utils.RespondWithError(c, http.StatusInternalServerError,
				"queue_error", "Failed to create processing task", nil)
			return
		}

		info, err := queueClient.Enqueue(task)
		if err != nil {
			storage.Remove(filePath)
			docs.DeleteDocument(ctx, doc.ID)
			utils.RespondWithError(c, http.StatusInternalServerError,
				"queue_error", "Failed to enqueue processing task", nil)
			return
		}

		logger.Info("document upload accepted",
			"document_id", doc.ID, "filename", doc.Filename, "task_id", info.ID)

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:        doc.ID,
			Filename:  doc.Filename,
			Status:    doc.Status,
			SizeBytes: doc.SizeBytes,
			TaskID:    info.ID,
			CreatedAt: doc.CreatedAt,
		})
	}
}

// HandleListDocuments lists documents newest first with page/limit pagination.
func HandleListDocuments(docs store.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageInt := 1
		limitInt := 10
		if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
			pageInt = p
		}
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 && l <= 100 {
			limitInt = l
		}

		ctx := c.Request.Context()
		list, err := docs.ListDocuments(ctx, limitInt, (pageInt-1)*limitInt)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve documents", nil)
			return
		}

		total, err := docs.CountDocuments(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to count documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": list,
			"pagination": gin.H{
				"page":        pageInt,
				"limit":       limitInt,
				"total":       total,
				"total_pages": (total + int64(limitInt) - 1) / int64(limitInt),
			},
		})
	}
}

// HandleGetDocument returns one document record.
func HandleGetDocument(docs store.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.DocumentByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

// HandleDocumentStatus reports ingestion progress for one document.
func HandleDocumentStatus(docs store.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.DocumentByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document status", nil)
			return
		}

		resp := gin.H{
			"document_id":    doc.ID,
			"filename":       doc.Filename,
			"status":         doc.Status, // pending, processing, completed, partial, failed
			"page_count":     doc.PageCount,
			"chunk_count":    doc.ChunkCount,
			"embedded_count": doc.EmbeddedCount,
			"updated_at":     doc.UpdatedAt,
		}
		if doc.FailureReason != "" {
			resp["failure_reason"] = doc.FailureReason
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleDocumentChunks returns a document's chunks in chunk order, for
// inspecting what retrieval will see.
func HandleDocumentChunks(docs store.DocumentStore, chunks store.ChunkStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		ctx := c.Request.Context()
		if _, err := docs.DocumentByID(ctx, documentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}

		limit := 0
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil && l > 0 {
			limit = l
		}

		list, err := chunks.ChunksByDocument(ctx, documentID, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve chunks", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": documentID,
			"count":       len(list),
			"chunks":      list,
		})
	}
}

// HandleDocumentReingest re-chunks a document from its archived extracted
// text. Useful after chunking parameters change.
func HandleDocumentReingest(docs store.DocumentStore, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		ctx := c.Request.Context()
		doc, err := docs.DocumentByID(ctx, documentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}

		// The worker rechecks this, but a queued task that can only fail
		// helps nobody.
		if len(doc.CompressedText) == 0 {
			utils.RespondWithBadRequest(c,
				"Document has no archived text, re-upload it instead", nil)
			return
		}

		task, err := queue.NewDocumentReingestTask(documentID)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"queue_error", "Failed to create reingest task", nil)
			return
		}

		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"queue_error", "Failed to enqueue reingest task", nil)
			return
		}

		logger.Info("document reingest accepted", "document_id", documentID, "task_id", info.ID)

		c.JSON(http.StatusAccepted, gin.H{
			"document_id": documentID,
			"task_id":     info.ID,
			"status":      models.StatusPending,
		})
	}
}

// HandleDeleteDocument removes a document record with all of its chunks and
// recorded exchanges. The document record goes last so a partial failure
// leaves the document visible and the delete retryable.
func HandleDeleteDocument(docs store.DocumentStore, chunks store.ChunkStore, history store.HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		ctx := c.Request.Context()
		if _, err := docs.DocumentByID(ctx, documentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}

		deleted, err := chunks.DeleteByDocument(ctx, documentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document chunks", nil)
			return
		}

		exchangesDeleted, err := history.DeleteExchangesByDocument(ctx, documentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document history", nil)
			return
		}

		if err := docs.DeleteDocument(ctx, documentID); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}

		logger.Info("document deleted", "document_id", documentID,
			"chunks_deleted", deleted, "exchanges_deleted", exchangesDeleted)

		c.JSON(http.StatusOK, gin.H{
			"document_id":       documentID,
			"chunks_deleted":    deleted,
			"exchanges_deleted": exchangesDeleted,
			"message":           "Document deleted",
		})
	}
}
