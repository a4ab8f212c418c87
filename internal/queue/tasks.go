package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/telemetry"
	"docqa-platform/services"
)

const (
	TaskProcessDocument    = "document:process"
	TaskReingestDocument   = "document:reingest"
	TaskBackfillEmbeddings = "embedding:backfill"
)

type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

type DocumentReingestPayload struct {
	DocumentID string `json:"document_id"`
}

// Task creators
func NewDocumentProcessTask(documentID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{
		DocumentID: documentID,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewDocumentReingestTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentReingestPayload{
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReingestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewBackfillEmbeddingsTask() *asynq.Task {
	return asynq.NewTask(
		TaskBackfillEmbeddings,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("low"),
	)
}

// Task handlers
type TaskProcessor struct {
	ingest   *services.IngestService
	backfill *services.BackfillService
	metrics  *telemetry.Metrics
}

func NewTaskProcessor(ingest *services.IngestService, backfill *services.BackfillService, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		ingest:   ingest,
		backfill: backfill,
		metrics:  metrics,
	}
}

func (p *TaskProcessor) HandleProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing document", "document_id", payload.DocumentID, "file_path", payload.FilePath)

	start := time.Now()
	err := p.ingest.ProcessDocument(ctx, payload.DocumentID, payload.FilePath)
	if services.IsPartialIngestError(err) {
		// Chunks are stored; the backfill sweep retries the embeddings. A
		// task retry would redo the whole extraction for nothing.
		p.metrics.RecordIngest(time.Since(start).Seconds(), "partial")
		logger.Warn("document processed with gaps", "document_id", payload.DocumentID, "error", err)
		return nil
	}
	if err != nil {
		p.metrics.RecordIngest(time.Since(start).Seconds(), "error")
		return classifyTaskError(err)
	}
	p.metrics.RecordIngest(time.Since(start).Seconds(), "success")

	logger.Info("document processed", "document_id", payload.DocumentID)
	return nil
}

func (p *TaskProcessor) HandleReingestDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentReingestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("reingesting document", "document_id", payload.DocumentID)

	start := time.Now()
	err := p.ingest.ReingestDocument(ctx, payload.DocumentID)
	if services.IsPartialIngestError(err) {
		p.metrics.RecordIngest(time.Since(start).Seconds(), "partial")
		logger.Warn("document reingested with gaps", "document_id", payload.DocumentID, "error", err)
		return nil
	}
	if err != nil {
		p.metrics.RecordIngest(time.Since(start).Seconds(), "error")
		return classifyTaskError(err)
	}
	p.metrics.RecordIngest(time.Since(start).Seconds(), "success")

	logger.Info("document reingested", "document_id", payload.DocumentID)
	return nil
}

func (p *TaskProcessor) HandleBackfillEmbeddings(ctx context.Context, t *asynq.Task) error {
	stats, err := p.backfill.Run(ctx)
	if err != nil {
		return err
	}

	if stats.Embedded > 0 {
		p.metrics.RecordChunksEmbedded(int64(stats.Embedded), "backfill")
	}

	logger.Info("backfill task finished", "scanned", stats.Scanned, "embedded", stats.Embedded)
	return nil
}

// classifyTaskError decides whether a failed task is worth retrying.
// Bad input stays bad on every attempt; only transient failures
// (upstream providers, storage) get another run.
func classifyTaskError(err error) error {
	if services.IsValidationError(err) || services.IsNotFoundError(err) || services.IsParseError(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
