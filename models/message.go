package models

import "time"

// MessagesCollection is the MongoDB collection holding Q&A history.
const MessagesCollection = "qa_messages"

// QAExchange records one question/answer round for history listing and
// export. Answers are recorded as delivered, degraded ones included; the
// record is informational and never read back into the pipeline.
type QAExchange struct {
	ID             string     `bson:"_id" json:"id"`
	DocumentID     string     `bson:"document_id,omitempty" json:"document_id,omitempty"` // empty for global asks
	Query          string     `bson:"query" json:"query"`
	Answer         string     `bson:"answer" json:"answer"`
	RetrievedCount int        `bson:"retrieved_count" json:"retrieved_count"`
	Citations      []Citation `bson:"citations,omitempty" json:"citations,omitempty"`
	LatencyMS      int64      `bson:"latency_ms" json:"latency_ms"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
}
