package models

import "time"

// DocumentsCollection is the MongoDB collection holding uploaded documents.
const DocumentsCollection = "documents"

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial" // chunks stored, one or more embeddings still missing
	StatusFailed     = "failed"
)

// Document represents one uploaded source document. A document is immutable
// once created; only status, counters and the archived text change as the
// ingestion pipeline runs.
type Document struct {
	ID          string `bson:"_id" json:"id"`
	Title       string `bson:"title" json:"title"`
	Filename    string `bson:"filename" json:"filename"`
	ContentType string `bson:"content_type" json:"content_type"`
	SizeBytes   int64  `bson:"size_bytes" json:"size_bytes"`
	PageCount   int    `bson:"page_count" json:"page_count"`

	Status        string `bson:"status" json:"status"` // pending, processing, completed, partial, failed
	ChunkCount    int    `bson:"chunk_count" json:"chunk_count"`
	EmbeddedCount int    `bson:"embedded_count" json:"embedded_count"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	// Archived extracted text so the document can be re-chunked without
	// re-running extraction. Stored compressed; never exposed over the API.
	CompressedText  []byte `bson:"compressed_text,omitempty" json:"-"`
	TextCompression string `bson:"text_compression,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UploadResponse is returned after an upload is accepted for processing.
type UploadResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	SizeBytes int64     `json:"size_bytes"`
	TaskID    string    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
