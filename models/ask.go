package models

// AskRequest is the transport-level body for POST /api/ask. K and Threshold
// are pointers so an explicit zero can be told apart from an omitted field;
// the handler resolves defaults before handing off to the answer service.
type AskRequest struct {
	Query      string   `json:"query" binding:"required,min=1,max=2000"`
	DocumentID string   `json:"document_id,omitempty"`
	K          *int     `json:"k,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

// AskParams carries one resolved question through the retrieval pipeline.
type AskParams struct {
	Query      string
	DocumentID string // empty means global scope
	K          int
	Threshold  float64
}

// Citation traces a generated answer back to a source chunk.
type Citation struct {
	ChunkID       string  `bson:"chunk_id" json:"chunk_id"`
	Page          int     `bson:"page" json:"page"`
	DocumentTitle string  `bson:"document_title" json:"document_title"`
	Snippet       string  `bson:"snippet" json:"snippet"`
	Score         float64 `bson:"score,omitempty" json:"score,omitempty"`
}

// AskResult is the structured answer returned by the synthesizer. It is
// always populated, even when retrieval finds nothing or generation is
// degraded; retrieval and generation failures never surface as errors here.
type AskResult struct {
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	RetrievedCount int        `json:"retrieved_count"`
}
