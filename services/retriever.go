package services

import (
	"context"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/models"
)

// Embedder produces embedding vectors. Implemented by ai.EmbeddingClient.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) []ai.EmbeddingResult
}

// Retriever finds the chunks most relevant to a query. Vector similarity is
// the primary mode; keyword search covers for an unavailable embedding
// provider, a failing store query, or simply zero vector matches.
// Retrieval never hard-fails just because the embedding provider is down.
type Retriever struct {
	chunks        store.ChunkStore
	docs          store.DocumentStore
	embedder      Embedder
	searchTimeout time.Duration
}

func NewRetriever(chunks store.ChunkStore, docs store.DocumentStore, embedder Embedder, cfg *config.Config) *Retriever {
	return &Retriever{
		chunks:        chunks,
		docs:          docs,
		embedder:      embedder,
		searchTimeout: cfg.SearchTimeout,
	}
}

// Retrieve returns up to k chunks relevant to the query, best first, scoped
// to one document when documentID is set. Vector results take priority;
// keyword fallback results fill in only when the vector side produced
// nothing. k <= 0 disables retrieval entirely.
func (r *Retriever) Retrieve(ctx context.Context, query, documentID string, k int, threshold float64) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	results := r.vectorPass(ctx, query, documentID, k, threshold)

	if len(results) == 0 {
		kwCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
		defer cancel()

		kw, err := r.chunks.KeywordSearch(kwCtx, query, store.SearchOptions{
			DocumentID: documentID,
			K:          k - len(results),
			ExcludeIDs: resultIDs(results),
		})
		if err != nil {
			return nil, WrapInternal("keyword search failed", err)
		}
		results = append(results, kw...)
	}

	if len(results) > k {
		results = results[:k]
	}

	r.attachTitles(ctx, results)
	return results, nil
}

// vectorPass embeds the query and runs similarity search. Any failure on
// this path is logged and reported as zero results so the caller falls back
// to keyword search.
func (r *Retriever) vectorPass(ctx context.Context, query, documentID string, k int, threshold float64) []models.SearchResult {
	searchCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()

	vector, err := r.embedder.EmbedQuery(searchCtx, query)
	if err != nil {
		logger.Warn("query embedding failed, falling back to keyword search", "error", err)
		return nil
	}

	results, err := r.chunks.SimilaritySearch(searchCtx, vector, store.SearchOptions{
		DocumentID: documentID,
		K:          k,
		Threshold:  threshold,
	})
	if err != nil {
		logger.Warn("similarity search failed, falling back to keyword search", "error", err)
		return nil
	}
	return results
}

// attachTitles resolves document titles onto results for citation display.
// Failure here degrades to empty titles rather than failing retrieval.
func (r *Retriever) attachTitles(ctx context.Context, results []models.SearchResult) {
	if len(results) == 0 {
		return
	}

	seen := make(map[string]bool, len(results))
	var ids []string
	for _, res := range results {
		if !seen[res.DocumentID] {
			seen[res.DocumentID] = true
			ids = append(ids, res.DocumentID)
		}
	}

	titles, err := r.docs.TitlesByIDs(ctx, ids)
	if err != nil {
		logger.Warn("failed to resolve document titles", "error", err)
		return
	}
	for i := range results {
		results[i].DocumentTitle = titles[results[i].DocumentID]
	}
}

func resultIDs(results []models.SearchResult) []string {
	if len(results) == 0 {
		return nil
	}
	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.ChunkID)
	}
	return ids
}
