package store

import (
	"context"
	"errors"
	"math"

	"docqa-platform/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// SearchOptions narrows a chunk search. DocumentID restricts the search to a
// single document when set; ExcludeIDs drops chunks already collected by an
// earlier search pass.
type SearchOptions struct {
	DocumentID string
	K          int
	Threshold  float64
	ExcludeIDs []string
}

// ChunkStore persists document chunks and serves both retrieval modes.
type ChunkStore interface {
	// InsertChunks upserts chunks keyed by (document_id, order). Chunks may
	// arrive with or without an embedding attached.
	InsertChunks(ctx context.Context, chunks []models.Chunk) error

	// AttachEmbedding stores a vector on an existing chunk.
	AttachEmbedding(ctx context.Context, chunkID string, vector []float32) error

	// SimilaritySearch returns up to K chunks whose embedding cosine
	// similarity against the query vector meets the threshold, best first.
	SimilaritySearch(ctx context.Context, vector []float32, opts SearchOptions) ([]models.SearchResult, error)

	// KeywordSearch returns up to K chunks containing the query as a
	// case-insensitive substring, ordered by page then chunk order. Every
	// result carries the same fixed score since substring matching has no
	// meaningful ranking signal.
	KeywordSearch(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error)

	// ChunksByDocument returns a document's chunks in chunk order.
	// limit <= 0 means no limit.
	ChunksByDocument(ctx context.Context, documentID string, limit int) ([]models.Chunk, error)

	// MissingEmbeddings returns up to limit chunks that have no embedding
	// yet, oldest first.
	MissingEmbeddings(ctx context.Context, limit int) ([]models.Chunk, error)

	// EmbeddingProgress reports how many of a document's chunks exist and
	// how many of those carry an embedding.
	EmbeddingProgress(ctx context.Context, documentID string) (total, embedded int, err error)

	// DeleteByDocument removes all chunks of a document and reports how many
	// were deleted.
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}

// DocumentStore persists document records.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	DocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)
	UpdateDocumentStatus(ctx context.Context, id, status, failureReason string) error
	// ArchiveExtraction stores the compressed extracted text, plus a title
	// when extraction discovered one, so the document can be re-chunked
	// later without the original upload.
	ArchiveExtraction(ctx context.Context, id string, compressed []byte, algorithm, title string) error
	// FinishDocument records processing results on the document.
	FinishDocument(ctx context.Context, id, status string, pageCount, chunkCount, embeddedCount int, failureReason string) error
	DeleteDocument(ctx context.Context, id string) error
	// TitlesByIDs resolves document titles for citation display.
	TitlesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// HistoryStore records question/answer exchanges.
type HistoryStore interface {
	RecordExchange(ctx context.Context, ex *models.QAExchange) error
	ListExchanges(ctx context.Context, documentID string, limit int) ([]models.QAExchange, error)
	// DeleteExchangesByDocument removes a document's exchanges when the
	// document itself is deleted, and reports how many were removed.
	DeleteExchangesByDocument(ctx context.Context, documentID string) (int64, error)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths and zero vectors score 0 rather than erroring, so a
// single malformed embedding cannot poison a whole search.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
