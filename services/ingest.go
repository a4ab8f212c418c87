package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/models"
	"docqa-platform/utils"
)

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	ChunksCreated  int `json:"chunks_created"`
	ChunksEmbedded int `json:"chunks_embedded"`
	Pages          int `json:"pages"`
}

// IngestService turns extracted text into persisted, embedded chunks and
// drives the document processing lifecycle around it.
type IngestService struct {
	docs     store.DocumentStore
	chunks   store.ChunkStore
	embedder Embedder
	cfg      *config.Config
}

func NewIngestService(docs store.DocumentStore, chunks store.ChunkStore, embedder Embedder, cfg *config.Config) *IngestService {
	return &IngestService{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Ingest chunks the text, embeds what it can, and persists every chunk,
// with its embedding when embedding succeeded and without one when it failed.
// Embedding failures never abort the run; the affected chunks stay
// queryable through keyword search until the backfill sweep catches up.
func (s *IngestService) Ingest(ctx context.Context, documentID, text string) (*IngestStats, error) {
	pieces := ChunkText(text, s.cfg.MaxChunkSize, s.cfg.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}

	now := time.Now()
	chunks := make([]models.Chunk, len(pieces))
	contents := make([]string, len(pieces))
	maxPage := 0
	for i, piece := range pieces {
		chunks[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Content:    piece.Content,
			Page:       piece.Page,
			Order:      i,
			CreatedAt:  now,
		}
		contents[i] = piece.Content
		if piece.Page > maxPage {
			maxPage = piece.Page
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedStageTimeout)
	defer cancel()

	embedded := 0
	for _, res := range s.embedder.EmbedDocuments(embedCtx, contents) {
		if res.Err != nil {
			logger.Warn("chunk embedding failed",
				"document_id", documentID, "order", res.Index, "error", res.Err)
			continue
		}
		chunks[res.Index].Embedding = res.Vector
		embedded++
	}

	if err := s.chunks.InsertChunks(ctx, chunks); err != nil {
		return nil, WrapInternal("failed to persist chunks", err)
	}

	logger.Info("document ingested",
		"document_id", documentID, "chunks", len(chunks), "embedded", embedded)

	return &IngestStats{
		ChunksCreated:  len(chunks),
		ChunksEmbedded: embedded,
		Pages:          maxPage,
	}, nil
}

// ProcessDocument runs the full pipeline for an uploaded file: extract,
// archive the extracted text, chunk, embed, persist, and record the final
// status on the document. The upload file is removed once processing
// succeeds, since the archived text covers reingestion.
func (s *IngestService) ProcessDocument(ctx context.Context, documentID, filePath string) error {
	doc, err := s.docs.DocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return WrapInternal("failed to load document", err)
	}

	if err := s.docs.UpdateDocumentStatus(ctx, documentID, models.StatusProcessing, ""); err != nil {
		return WrapInternal("failed to mark document processing", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Sprintf("failed to read upload: %v", err), err)
	}

	extractor, err := ExtractorFor(doc.ContentType)
	if err != nil {
		return s.fail(ctx, documentID, err.Error(), err)
	}

	extraction, err := extractor.Extract(ctx, content)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Sprintf("text extraction failed: %v", err), err)
	}

	s.archive(ctx, documentID, extraction)

	stats, err := s.Ingest(ctx, documentID, extraction.Text)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Sprintf("ingestion failed: %v", err), err)
	}
	if stats.Pages < extraction.Pages {
		stats.Pages = extraction.Pages
	}

	if err := s.finish(ctx, documentID, stats); err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		logger.Warn("failed to remove processed upload", "path", filePath, "error", err)
	}
	return partialError(stats)
}

// ReingestDocument re-chunks a document from its archived extracted text,
// replacing all existing chunks. Used after chunking or embedding settings
// change.
func (s *IngestService) ReingestDocument(ctx context.Context, documentID string) error {
	doc, err := s.docs.DocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return WrapInternal("failed to load document", err)
	}

	if len(doc.CompressedText) == 0 {
		return NewDomainError(ErrorTypeValidation,
			"document has no archived text, re-upload it instead", nil)
	}

	text, err := utils.DecompressText(doc.CompressedText, utils.CompressionAlgorithm(doc.TextCompression))
	if err != nil {
		return WrapInternal("failed to decompress archived text", err)
	}

	if err := s.docs.UpdateDocumentStatus(ctx, documentID, models.StatusProcessing, ""); err != nil {
		return WrapInternal("failed to mark document processing", err)
	}

	if _, err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return s.fail(ctx, documentID, fmt.Sprintf("failed to clear previous chunks: %v", err), err)
	}

	stats, err := s.Ingest(ctx, documentID, text)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Sprintf("ingestion failed: %v", err), err)
	}
	if stats.Pages < doc.PageCount {
		stats.Pages = doc.PageCount
	}

	if err := s.finish(ctx, documentID, stats); err != nil {
		return err
	}
	return partialError(stats)
}

// archive compresses and stores the extracted text. Best-effort: a failed
// archive only costs the ability to reingest, so it logs instead of failing
// the pipeline.
func (s *IngestService) archive(ctx context.Context, documentID string, extraction *ExtractionResult) {
	compressed, algorithm, err := utils.CompressText(extraction.Text)
	if err != nil {
		logger.Warn("failed to compress extracted text", "document_id", documentID, "error", err)
		return
	}
	if err := s.docs.ArchiveExtraction(ctx, documentID, compressed, string(algorithm), extraction.Title); err != nil {
		logger.Warn("failed to archive extracted text", "document_id", documentID, "error", err)
	}
}

// finish records counts and the final status: completed when every chunk is
// embedded, partial when any are missing.
func (s *IngestService) finish(ctx context.Context, documentID string, stats *IngestStats) error {
	status := models.StatusCompleted
	reason := ""
	if stats.ChunksEmbedded < stats.ChunksCreated {
		status = models.StatusPartial
		reason = fmt.Sprintf("%d of %d chunks missing embeddings",
			stats.ChunksCreated-stats.ChunksEmbedded, stats.ChunksCreated)
	}

	if err := s.docs.FinishDocument(ctx, documentID, status,
		stats.Pages, stats.ChunksCreated, stats.ChunksEmbedded, reason); err != nil {
		return WrapInternal("failed to record processing result", err)
	}
	return nil
}

func (s *IngestService) fail(ctx context.Context, documentID, reason string, cause error) error {
	if err := s.docs.UpdateDocumentStatus(ctx, documentID, models.StatusFailed, reason); err != nil {
		logger.Error("failed to mark document failed", "document_id", documentID, "error", err)
	}
	return cause
}

// partialError reports missing embeddings to the caller without failing the
// pipeline. The document is already stored as partial; workers downgrade this
// to a warning and leave the gaps to the backfill sweep.
func partialError(stats *IngestStats) error {
	if stats.ChunksEmbedded >= stats.ChunksCreated {
		return nil
	}
	return NewDomainError(ErrorTypePartialIngest,
		fmt.Sprintf("%d of %d chunks missing embeddings",
			stats.ChunksCreated-stats.ChunksEmbedded, stats.ChunksCreated), nil)
}
