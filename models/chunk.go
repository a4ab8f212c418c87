package models

import "time"

// ChunksCollection is the MongoDB collection holding retrieval chunks.
const ChunksCollection = "document_chunks"

// Chunk is the unit of retrieval: a bounded, page-tagged slice of a
// document's text. Chunks are created in a batch when a document is
// ingested; the only later mutation is attaching an embedding.
type Chunk struct {
	ID         string    `bson:"_id" json:"id"`
	DocumentID string    `bson:"document_id" json:"document_id"`
	Content    string    `bson:"content" json:"content"`
	Page       int       `bson:"page" json:"page"`   // 1-based; non-decreasing across a document's sequence
	Order      int       `bson:"order" json:"order"` // emission order within the document
	Embedding  []float32 `bson:"embedding,omitempty" json:"-"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Embedded reports whether an embedding vector has been attached.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// SearchResult is one retrieval hit. Constructed per query, never persisted.
type SearchResult struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title,omitempty"`
	Content       string  `json:"content"`
	Page          int     `json:"page"`
	Score         float64 `json:"score"`
}
