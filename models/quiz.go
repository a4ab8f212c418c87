package models

import "time"

// Quiz is generated on demand from a document's chunks and returned to the
// caller without being persisted.
type Quiz struct {
	DocumentID    string         `json:"document_id"`
	DocumentTitle string         `json:"document_title"`
	Questions     []QuizQuestion `json:"questions"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// QuizQuestion is one multiple-choice question. The JSON tags double as the
// schema the generation prompt asks the model to produce.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"` // exactly four
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
	Page        int      `json:"page,omitempty"` // source page when the model can attribute one
}

// QuizRequest is the transport-level body for quiz generation.
type QuizRequest struct {
	NumQuestions int `json:"num_questions,omitempty"`
}
