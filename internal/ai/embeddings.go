package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docqa-platform/internal/config"
)

// EmbeddingResult carries the outcome for one text in a batch. A failed item
// records its error without affecting the rest of the batch.
type EmbeddingResult struct {
	Index  int
	Vector []float32
	Err    error
}

// EmbeddingClient produces embedding vectors via Google Generative AI
// (text-embedding-004 by default). Document content and search queries use
// different task types so the provider optimizes each side of the retrieval
// pair.
type EmbeddingClient struct {
	model      string
	dimensions int
	batchSize  int
	batchDelay time.Duration
	client     *genai.Client

	// embedFn performs a single embedding call. Swappable in tests.
	embedFn func(ctx context.Context, text string, task genai.TaskType) ([]float32, error)
}

func NewEmbeddingClient(ctx context.Context, cfg *config.Config) (*EmbeddingClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	ec := &EmbeddingClient{
		model:      cfg.GoogleEmbeddingsModel,
		dimensions: cfg.VectorDimensions,
		batchSize:  cfg.EmbedBatchSize,
		batchDelay: cfg.EmbedBatchDelay,
		client:     client,
	}
	ec.embedFn = ec.embed
	return ec, nil
}

func (ec *EmbeddingClient) embed(ctx context.Context, text string, task genai.TaskType) ([]float32, error) {
	model := ec.client.EmbeddingModel(ec.model)
	model.TaskType = task

	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	if ec.dimensions > 0 && len(resp.Embedding.Values) != ec.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(resp.Embedding.Values), ec.dimensions)
	}
	return resp.Embedding.Values, nil
}

// EmbedQuery embeds a search query.
func (ec *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return ec.embedFn(ctx, text, genai.TaskTypeRetrievalQuery)
}

// EmbedDocuments embeds document chunks in waves of at most the configured
// batch size. Items within a wave run concurrently; waves are separated by a
// fixed delay to stay under provider rate limits. One failed item never
// fails its siblings.
func (ec *EmbeddingClient) EmbedDocuments(ctx context.Context, texts []string) []EmbeddingResult {
	results := make([]EmbeddingResult, len(texts))

	for start := 0; start < len(texts); start += ec.batchSize {
		end := start + ec.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vec, err := ec.embedFn(ctx, texts[i], genai.TaskTypeRetrievalDocument)
				results[i] = EmbeddingResult{Index: i, Vector: vec, Err: err}
			}(i)
		}
		wg.Wait()

		if end < len(texts) && ec.batchDelay > 0 {
			select {
			case <-ctx.Done():
				for i := end; i < len(texts); i++ {
					results[i] = EmbeddingResult{Index: i, Err: ctx.Err()}
				}
				return results
			case <-time.After(ec.batchDelay):
			}
		}
	}
	return results
}

func (ec *EmbeddingClient) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}
