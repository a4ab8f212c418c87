package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/models"
	"docqa-platform/utils"
)

// quizTemperature allows some variety in question phrasing while keeping
// the JSON structure stable.
const quizTemperature = 0.4

const defaultQuizQuestions = 5

// QuizService generates multiple-choice quizzes from a document's chunks.
// The model is asked for strict JSON; since models routinely wrap JSON in
// prose anyway, the response goes through lenient extraction and per-question
// validation before anything reaches the caller.
type QuizService struct {
	docs          store.DocumentStore
	chunks        store.ChunkStore
	generator     Generator
	contextChunks int
	maxQuestions  int
}

func NewQuizService(docs store.DocumentStore, chunks store.ChunkStore, generator Generator, cfg *config.Config) *QuizService {
	return &QuizService{
		docs:          docs,
		chunks:        chunks,
		generator:     generator,
		contextChunks: cfg.QuizContextChunks,
		maxQuestions:  cfg.QuizMaxQuestions,
	}
}

// GenerateQuiz builds a quiz over the document's leading chunks. The
// requested question count is clamped to the configured maximum.
func (s *QuizService) GenerateQuiz(ctx context.Context, documentID string, numQuestions int) (*models.Quiz, error) {
	if numQuestions <= 0 {
		numQuestions = defaultQuizQuestions
	}
	if numQuestions > s.maxQuestions {
		numQuestions = s.maxQuestions
	}

	doc, err := s.docs.DocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, WrapInternal("failed to load document", err)
	}

	chunks, err := s.chunks.ChunksByDocument(ctx, documentID, s.contextChunks)
	if err != nil {
		return nil, WrapInternal("failed to load chunks", err)
	}
	if len(chunks) == 0 {
		return nil, NewDomainError(ErrorTypeNotFound, "document has no chunks to quiz from", nil)
	}

	prompt := buildQuizPrompt(doc.Title, chunks, numQuestions)

	raw, err := s.generator.Generate(ctx, prompt, quizTemperature)
	if err != nil {
		return nil, WrapGeneration("quiz generation failed", err)
	}

	var payload struct {
		Questions []models.QuizQuestion `json:"questions"`
	}
	if err := utils.ExtractJSONObject(raw, &payload); err != nil {
		return nil, NewDomainError(ErrorTypeParse, "model returned unparseable quiz JSON", err)
	}

	questions := validQuestions(payload.Questions)
	if len(questions) == 0 {
		return nil, NewDomainError(ErrorTypeParse, "model returned no usable questions", nil)
	}
	if len(questions) > numQuestions {
		questions = questions[:numQuestions]
	}

	return &models.Quiz{
		DocumentID:    documentID,
		DocumentTitle: doc.Title,
		Questions:     questions,
		GeneratedAt:   time.Now(),
	}, nil
}

// validQuestions drops malformed questions rather than rejecting the whole
// quiz: a model that botches one question out of ten still produced a quiz.
func validQuestions(questions []models.QuizQuestion) []models.QuizQuestion {
	valid := make([]models.QuizQuestion, 0, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			logger.Debug("dropping quiz question with empty text", "index", i)
			continue
		}
		if len(q.Options) != 4 {
			logger.Debug("dropping quiz question without exactly four options", "index", i, "options", len(q.Options))
			continue
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			logger.Debug("dropping quiz question with out-of-range answer", "index", i, "answer_index", q.AnswerIndex)
			continue
		}
		valid = append(valid, q)
	}
	return valid
}

func buildQuizPrompt(title string, chunks []models.Chunk, numQuestions int) string {
	var contextBuilder strings.Builder
	for _, ch := range chunks {
		contextBuilder.WriteString(fmt.Sprintf("[p. %d] %s\n\n", ch.Page, truncateText(ch.Content, 1500)))
	}
	if title == "" {
		title = "the document"
	}

	return fmt.Sprintf(`Create a multiple-choice quiz with exactly %d questions about %s, using ONLY the excerpts below.

Requirements:
1. Each question has exactly 4 options and one correct answer.
2. "answer_index" is the 0-based index of the correct option.
3. "page" is the page number of the excerpt the question is based on.
4. Return ONLY a JSON object in this exact shape, no other text:

{
  "questions": [
    {
      "question": "What does ...?",
      "options": ["First", "Second", "Third", "Fourth"],
      "answer_index": 0,
      "explanation": "Why the answer is correct.",
      "page": 1
    }
  ]
}

Excerpts:
%s`, numQuestions, title, contextBuilder.String())
}
