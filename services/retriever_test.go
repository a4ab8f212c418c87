package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/store"
	"docqa-platform/models"
)

// stubEmbedder returns canned vectors and counts calls.
type stubEmbedder struct {
	queryVector []float32
	queryErr    error
	queryCalls  int
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	s.queryCalls++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.queryVector, nil
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) []ai.EmbeddingResult {
	results := make([]ai.EmbeddingResult, len(texts))
	for i := range texts {
		results[i] = ai.EmbeddingResult{Index: i, Vector: s.queryVector}
	}
	return results
}

// failingSimilarityStore makes the vector pass fail while keyword search
// still works.
type failingSimilarityStore struct {
	store.ChunkStore
}

func (f *failingSimilarityStore) SimilaritySearch(ctx context.Context, vector []float32, opts store.SearchOptions) ([]models.SearchResult, error) {
	return nil, errors.New("search index unavailable")
}

// failingChunkStore fails both retrieval modes.
type failingChunkStore struct {
	store.ChunkStore
}

func (f *failingChunkStore) SimilaritySearch(ctx context.Context, vector []float32, opts store.SearchOptions) ([]models.SearchResult, error) {
	return nil, errors.New("search index unavailable")
}

func (f *failingChunkStore) KeywordSearch(ctx context.Context, query string, opts store.SearchOptions) ([]models.SearchResult, error) {
	return nil, errors.New("store down")
}

func testConfig() *config.Config {
	return &config.Config{
		SearchTimeout:        5 * time.Second,
		EmbedStageTimeout:    5 * time.Second,
		DefaultTopK:          5,
		KeywordFallbackScore: 0.5,
		CitationSnippetLen:   200,
		MaxChunkSize:         1000,
		ChunkOverlap:         200,
		QuizContextChunks:    12,
		QuizMaxQuestions:     10,
		BackfillBatchSize:    50,
	}
}

func seedChunks(t *testing.T, mem *store.Memory) {
	t.Helper()

	ctx := context.Background()
	if err := mem.InsertDocument(ctx, &models.Document{ID: "doc1", Title: "Manual"}); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	if err := mem.InsertDocument(ctx, &models.Document{ID: "doc2", Title: "Guide"}); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	// 2D toy embeddings so similarity is easy to reason about.
	chunks := []models.Chunk{
		{ID: "c1", DocumentID: "doc1", Content: "install the turbine blade", Page: 1, Order: 0, Embedding: []float32{1, 0}},
		{ID: "c2", DocumentID: "doc1", Content: "remove the turbine housing", Page: 2, Order: 1, Embedding: []float32{0, 1}},
		{ID: "c3", DocumentID: "doc2", Content: "turbine safety procedures", Page: 1, Order: 0, Embedding: []float32{0.7, 0.7}},
	}
	if err := mem.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}
}

func TestRetrieve_KZeroDisablesRetrieval(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	emb := &stubEmbedder{queryVector: []float32{1, 0}}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(context.Background(), "turbine", "", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %d", len(results))
	}
	if emb.queryCalls != 0 {
		t.Fatalf("embedder called %d times for k=0", emb.queryCalls)
	}
}

func TestRetrieve_VectorResultsBestFirst(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	emb := &stubEmbedder{queryVector: []float32{1, 0}}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(context.Background(), "turbine", "", 2, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "c1" {
		t.Fatalf("expected best match c1, got %s", results[0].ChunkID)
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("results not sorted by score: %f then %f", results[0].Score, results[1].Score)
	}
	if results[0].DocumentTitle != "Manual" {
		t.Fatalf("expected title attached, got %q", results[0].DocumentTitle)
	}
}

func TestRetrieve_FallsBackWhenEmbedderDown(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	emb := &stubEmbedder{queryErr: errors.New("quota exhausted")}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(context.Background(), "turbine", "", 5, 0)
	if err != nil {
		t.Fatalf("retrieval must not fail when the embedder is down: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 keyword matches, got %d", len(results))
	}
	for _, res := range results {
		if res.Score != 0.5 {
			t.Fatalf("keyword match score = %f, want fixed 0.5", res.Score)
		}
	}
}

func TestRetrieve_FallsBackOnZeroVectorMatches(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	// Orthogonal to every stored vector at this threshold.
	emb := &stubEmbedder{queryVector: []float32{-1, 0}}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(context.Background(), "safety", "", 5, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword match, got %d", len(results))
	}
	if results[0].ChunkID != "c3" {
		t.Fatalf("expected c3, got %s", results[0].ChunkID)
	}
}

func TestRetrieve_FallsBackOnStoreFailure(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	emb := &stubEmbedder{queryVector: []float32{1, 0}}
	r := NewRetriever(&failingSimilarityStore{ChunkStore: mem}, mem, emb, testConfig())

	results, err := r.Retrieve(context.Background(), "turbine", "", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected keyword fallback results")
	}
}

func TestRetrieve_ErrorWhenBothModesFail(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	emb := &stubEmbedder{queryVector: []float32{1, 0}}
	r := NewRetriever(&failingChunkStore{ChunkStore: mem}, mem, emb, testConfig())

	_, err := r.Retrieve(context.Background(), "turbine", "", 5, 0)
	if err == nil {
		t.Fatal("expected error when both search modes fail")
	}
	if GetErrorType(err) != ErrorTypeInternal {
		t.Fatalf("expected internal error, got %v", GetErrorType(err))
	}
}

func TestRetrieve_ScopedToDocument(t *testing.T) {
	mem := store.NewMemory()
	seedChunks(t, mem)
	emb := &stubEmbedder{queryVector: []float32{1, 0}}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(context.Background(), "turbine", "doc1", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, res := range results {
		if res.DocumentID != "doc1" {
			t.Fatalf("result from %s leaked into doc1 scope", res.DocumentID)
		}
	}
}

func TestRetrieve_KeywordFallbackPageOrder(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	if err := mem.InsertDocument(ctx, &models.Document{ID: "doc1", Title: "Manual"}); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	// Inserted out of page order on purpose; none embedded, so only the
	// keyword path can serve them.
	chunks := []models.Chunk{
		{ID: "p3", DocumentID: "doc1", Content: "valve check step", Page: 3, Order: 0},
		{ID: "p1", DocumentID: "doc1", Content: "valve intro", Page: 1, Order: 1},
		{ID: "p2", DocumentID: "doc1", Content: "valve diagram", Page: 2, Order: 2},
	}
	if err := mem.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	emb := &stubEmbedder{queryErr: errors.New("provider down")}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(ctx, "valve", "doc1", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Page < results[i-1].Page {
			t.Fatalf("fallback results out of page order: %d before %d", results[i-1].Page, results[i].Page)
		}
	}
}

func TestRetrieve_CappedAtK(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	var chunks []models.Chunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, models.Chunk{
			ID: string(rune('a' + i)), DocumentID: "doc1",
			Content: "pump maintenance", Page: i + 1, Order: i,
		})
	}
	if err := mem.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	emb := &stubEmbedder{queryErr: errors.New("provider down")}
	r := NewRetriever(mem, mem, emb, testConfig())

	results, err := r.Retrieve(ctx, "pump", "", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected k=3 results, got %d", len(results))
	}
}
