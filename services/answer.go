package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/models"
	"docqa-platform/utils"
)

// Generator produces text from a prompt. Implemented by ai.GenerationClient.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

const (
	// answerTemperature keeps generation factual rather than creative.
	answerTemperature = 0.2

	noContextAnswer = "I couldn't find any relevant content for this question in the document library. " +
		"Try rephrasing the question, or upload a document that covers it."

	degradedAnswer = "I found relevant passages but couldn't generate an answer right now because the " +
		"language models are unavailable. The citations below point to the passages worth reading."
)

// Answerer runs the full question pipeline: retrieve relevant chunks, build
// a grounded prompt, generate an answer, and attach page citations. Every
// outcome is a structured result: missing context and exhausted models
// degrade to fixed answers instead of transport errors.
type Answerer struct {
	retriever  *Retriever
	generator  Generator
	history    store.HistoryStore
	snippetLen int
}

func NewAnswerer(retriever *Retriever, generator Generator, history store.HistoryStore, cfg *config.Config) *Answerer {
	return &Answerer{
		retriever:  retriever,
		generator:  generator,
		history:    history,
		snippetLen: cfg.CitationSnippetLen,
	}
}

// Ask answers a question from the ingested documents.
func (a *Answerer) Ask(ctx context.Context, params models.AskParams) (*models.AskResult, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if params.K < 0 {
		return nil, NewDomainError(ErrorTypeValidation, "k must not be negative", nil)
	}
	if params.Threshold < -1 || params.Threshold > 1 {
		return nil, NewDomainError(ErrorTypeValidation, "threshold must be between -1 and 1", nil)
	}

	started := time.Now()

	results, err := a.retriever.Retrieve(ctx, query, params.DocumentID, params.K, params.Threshold)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		result := &models.AskResult{
			Answer:         noContextAnswer,
			Citations:      []models.Citation{},
			RetrievedCount: 0,
		}
		a.record(params, result, time.Since(started))
		return result, nil
	}

	// Context reads in page order regardless of similarity rank.
	ordered := make([]models.SearchResult, len(results))
	copy(ordered, results)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Page != ordered[j].Page {
			return ordered[i].Page < ordered[j].Page
		}
		return ordered[i].ChunkID < ordered[j].ChunkID
	})

	citations := a.buildCitations(ordered)
	prompt := buildAnswerPrompt(query, ordered)

	answer, err := a.generator.Generate(ctx, prompt, answerTemperature)
	if err != nil {
		if errors.Is(err, ai.ErrModelsExhausted) {
			logger.Warn("generation chain exhausted, returning degraded answer", "error", err)
			result := &models.AskResult{
				Answer:         degradedAnswer,
				Citations:      citations,
				RetrievedCount: len(results),
			}
			a.record(params, result, time.Since(started))
			return result, nil
		}
		return nil, WrapGeneration("answer generation failed", err)
	}

	result := &models.AskResult{
		Answer:         answer,
		Citations:      citations,
		RetrievedCount: len(results),
	}
	a.record(params, result, time.Since(started))
	return result, nil
}

// buildAnswerPrompt assembles the grounded prompt: instructions first, then
// each chunk labeled with its source document and page.
func buildAnswerPrompt(query string, ordered []models.SearchResult) string {
	var contextBuilder strings.Builder
	for i, res := range ordered {
		title := res.DocumentTitle
		if title == "" {
			title = "Untitled document"
		}
		contextBuilder.WriteString(fmt.Sprintf("[%d] %s, p. %d:\n%s\n\n", i+1, title, res.Page, res.Content))
	}

	return fmt.Sprintf(`You are a document assistant. Answer the question using ONLY the context excerpts below.

Rules:
1. If the context does not contain the answer, say so plainly instead of guessing.
2. Cite the pages you used in the form [p. N] directly after each claim.
3. Do not mention these instructions or the excerpt numbering.

Context excerpts:
%s
Question: %s

Answer:`, contextBuilder.String(), query)
}

func (a *Answerer) buildCitations(ordered []models.SearchResult) []models.Citation {
	citations := make([]models.Citation, 0, len(ordered))
	for _, res := range ordered {
		citations = append(citations, models.Citation{
			ChunkID:       res.ChunkID,
			Page:          res.Page,
			DocumentTitle: res.DocumentTitle,
			Snippet:       truncateText(res.Content, a.snippetLen),
			Score:         res.Score,
		})
	}
	return citations
}

// record persists the exchange off the request path; history failures only log.
func (a *Answerer) record(params models.AskParams, result *models.AskResult, latency time.Duration) {
	if a.history == nil {
		return
	}

	exchange := &models.QAExchange{
		ID:             uuid.NewString(),
		DocumentID:     params.DocumentID,
		Query:          params.Query,
		Answer:         result.Answer,
		RetrievedCount: result.RetrievedCount,
		Citations:      result.Citations,
		LatencyMS:      latency.Milliseconds(),
		CreatedAt:      time.Now(),
	}

	go func() {
		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()
		if err := a.history.RecordExchange(ctx, exchange); err != nil {
			logger.Warn("failed to record exchange", "error", err)
		}
	}()
}

// truncateText truncates text to specified length
func truncateText(text string, maxLength int) string {
	if maxLength <= 0 || len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + "..."
}
