package services

import (
	"context"
	"errors"
	"fmt"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/models"
)

// BackfillService sweeps chunks whose embedding is still missing, usually
// because the provider failed on them during ingestion, and retries them in
// batches. Once a document's last missing embedding lands, its status moves
// from partial to completed.
type BackfillService struct {
	docs      store.DocumentStore
	chunks    store.ChunkStore
	embedder  Embedder
	batchSize int
	cfg       *config.Config
}

func NewBackfillService(docs store.DocumentStore, chunks store.ChunkStore, embedder Embedder, cfg *config.Config) *BackfillService {
	return &BackfillService{
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
		batchSize: cfg.BackfillBatchSize,
		cfg:       cfg,
	}
}

// BackfillStats summarizes one sweep.
type BackfillStats struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
}

// Run performs one sweep over the oldest unembedded chunks.
func (s *BackfillService) Run(ctx context.Context) (*BackfillStats, error) {
	chunks, err := s.chunks.MissingEmbeddings(ctx, s.batchSize)
	if err != nil {
		return nil, WrapInternal("failed to load unembedded chunks", err)
	}
	if len(chunks) == 0 {
		return &BackfillStats{}, nil
	}

	contents := make([]string, len(chunks))
	for i, ch := range chunks {
		contents[i] = ch.Content
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedStageTimeout)
	defer cancel()

	stats := &BackfillStats{Scanned: len(chunks)}
	touched := make(map[string]bool)
	for _, res := range s.embedder.EmbedDocuments(embedCtx, contents) {
		if res.Err != nil {
			logger.Warn("backfill embedding failed",
				"chunk_id", chunks[res.Index].ID, "error", res.Err)
			continue
		}
		if err := s.chunks.AttachEmbedding(ctx, chunks[res.Index].ID, res.Vector); err != nil {
			logger.Warn("failed to attach backfilled embedding",
				"chunk_id", chunks[res.Index].ID, "error", err)
			continue
		}
		stats.Embedded++
		touched[chunks[res.Index].DocumentID] = true
	}

	for documentID := range touched {
		s.refreshDocument(ctx, documentID)
	}

	logger.Info("embedding backfill sweep complete",
		"scanned", stats.Scanned, "embedded", stats.Embedded)
	return stats, nil
}

// refreshDocument recomputes a document's embedding counts and flips its
// status to completed once nothing is missing.
func (s *BackfillService) refreshDocument(ctx context.Context, documentID string) {
	doc, err := s.docs.DocumentByID(ctx, documentID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("failed to load document after backfill", "document_id", documentID, "error", err)
		}
		return
	}

	total, embedded, err := s.chunks.EmbeddingProgress(ctx, documentID)
	if err != nil {
		logger.Warn("failed to compute embedding progress", "document_id", documentID, "error", err)
		return
	}

	status := models.StatusCompleted
	reason := ""
	if embedded < total {
		status = models.StatusPartial
		reason = fmt.Sprintf("%d of %d chunks missing embeddings", total-embedded, total)
	}

	if err := s.docs.FinishDocument(ctx, documentID, status,
		doc.PageCount, total, embedded, reason); err != nil {
		logger.Warn("failed to update document after backfill", "document_id", documentID, "error", err)
	}
}
