package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"docqa-platform/models"
)

// Memory is an in-process store used by tests and single-node setups. It
// implements ChunkStore, DocumentStore and HistoryStore with the same
// semantics as the Mongo-backed store.
type Memory struct {
	mu sync.RWMutex

	// KeywordScore is assigned to every keyword match.
	KeywordScore float64

	chunks     map[string]models.Chunk
	byDocOrder map[string]string // (document_id, order) -> chunk ID
	chunkSeq   []string          // insertion order, oldest first

	documents map[string]models.Document
	docSeq    []string

	exchanges []models.QAExchange
}

func NewMemory() *Memory {
	return &Memory{
		KeywordScore: 0.5,
		chunks:       make(map[string]models.Chunk),
		byDocOrder:   make(map[string]string),
		documents:    make(map[string]models.Document),
	}
}

func docOrderKey(documentID string, order int) string {
	return fmt.Sprintf("%s/%d", documentID, order)
}

func (m *Memory) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range chunks {
		key := docOrderKey(ch.DocumentID, ch.Order)
		if existingID, ok := m.byDocOrder[key]; ok {
			// Keep the original ID and insertion slot on reinsert.
			existing := m.chunks[existingID]
			existing.Content = ch.Content
			existing.Page = ch.Page
			existing.Embedding = ch.Embedding
			m.chunks[existingID] = existing
			continue
		}
		m.chunks[ch.ID] = ch
		m.byDocOrder[key] = ch.ID
		m.chunkSeq = append(m.chunkSeq, ch.ID)
	}
	return nil
}

func (m *Memory) AttachEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.chunks[chunkID]
	if !ok {
		return ErrNotFound
	}
	ch.Embedding = vector
	m.chunks[chunkID] = ch
	return nil
}

func (m *Memory) SimilaritySearch(ctx context.Context, vector []float32, opts SearchOptions) ([]models.SearchResult, error) {
	if opts.K <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := toSet(opts.ExcludeIDs)
	var results []models.SearchResult
	for _, ch := range m.chunks {
		if opts.DocumentID != "" && ch.DocumentID != opts.DocumentID {
			continue
		}
		if !ch.Embedded() || excluded[ch.ID] {
			continue
		}
		score := CosineSimilarity(vector, ch.Embedding)
		if score < opts.Threshold {
			continue
		}
		results = append(results, searchResultFromChunk(ch, score))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Page != results[j].Page {
			return results[i].Page < results[j].Page
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > opts.K {
		results = results[:opts.K]
	}
	return results, nil
}

func (m *Memory) KeywordSearch(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error) {
	if opts.K <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := toSet(opts.ExcludeIDs)
	needle := strings.ToLower(query)

	type match struct {
		chunk models.Chunk
	}
	var matches []match
	for _, ch := range m.chunks {
		if opts.DocumentID != "" && ch.DocumentID != opts.DocumentID {
			continue
		}
		if excluded[ch.ID] {
			continue
		}
		if !strings.Contains(strings.ToLower(ch.Content), needle) {
			continue
		}
		matches = append(matches, match{chunk: ch})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].chunk, matches[j].chunk
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Order < b.Order
	})

	if len(matches) > opts.K {
		matches = matches[:opts.K]
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, mt := range matches {
		results = append(results, searchResultFromChunk(mt.chunk, m.KeywordScore))
	}
	return results, nil
}

func (m *Memory) ChunksByDocument(ctx context.Context, documentID string, limit int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chunks []models.Chunk
	for _, ch := range m.chunks {
		if ch.DocumentID == documentID {
			chunks = append(chunks, ch)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Order < chunks[j].Order })

	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (m *Memory) MissingEmbeddings(ctx context.Context, limit int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chunks []models.Chunk
	for _, id := range m.chunkSeq {
		ch, ok := m.chunks[id]
		if !ok || ch.Embedded() {
			continue
		}
		chunks = append(chunks, ch)
		if limit > 0 && len(chunks) == limit {
			break
		}
	}
	return chunks, nil
}

func (m *Memory) EmbeddingProgress(ctx context.Context, documentID string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, embedded := 0, 0
	for _, ch := range m.chunks {
		if ch.DocumentID != documentID {
			continue
		}
		total++
		if ch.Embedded() {
			embedded++
		}
	}
	return total, embedded, nil
}

func (m *Memory) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	kept := m.chunkSeq[:0]
	for _, id := range m.chunkSeq {
		ch, ok := m.chunks[id]
		if ok && ch.DocumentID == documentID {
			delete(m.chunks, id)
			delete(m.byDocOrder, docOrderKey(ch.DocumentID, ch.Order))
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	m.chunkSeq = kept
	return deleted, nil
}

func (m *Memory) InsertDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[doc.ID]; !ok {
		m.docSeq = append(m.docSeq, doc.ID)
	}
	m.documents[doc.ID] = *doc
	return nil
}

func (m *Memory) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *Memory) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first, matching the Mongo store's created_at sort.
	var docs []models.Document
	for i := len(m.docSeq) - 1; i >= 0; i-- {
		docs = append(docs, m.documents[m.docSeq[i]])
	}
	if offset > 0 {
		if offset >= len(docs) {
			return nil, nil
		}
		docs = docs[offset:]
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *Memory) CountDocuments(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.documents)), nil
}

func (m *Memory) ArchiveExtraction(ctx context.Context, id string, compressed []byte, algorithm, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.CompressedText = compressed
	doc.TextCompression = algorithm
	if title != "" {
		doc.Title = title
	}
	doc.UpdatedAt = time.Now()
	m.documents[id] = doc
	return nil
}

func (m *Memory) UpdateDocumentStatus(ctx context.Context, id, status, failureReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.FailureReason = failureReason
	doc.UpdatedAt = time.Now()
	m.documents[id] = doc
	return nil
}

func (m *Memory) FinishDocument(ctx context.Context, id, status string, pageCount, chunkCount, embeddedCount int, failureReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.PageCount = pageCount
	doc.ChunkCount = chunkCount
	doc.EmbeddedCount = embeddedCount
	doc.FailureReason = failureReason
	doc.UpdatedAt = time.Now()
	m.documents[id] = doc
	return nil
}

func (m *Memory) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(m.documents, id)
	for i, docID := range m.docSeq {
		if docID == id {
			m.docSeq = append(m.docSeq[:i], m.docSeq[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) TitlesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	titles := make(map[string]string, len(ids))
	for _, id := range ids {
		if doc, ok := m.documents[id]; ok {
			titles[id] = doc.Title
		}
	}
	return titles, nil
}

func (m *Memory) RecordExchange(ctx context.Context, ex *models.QAExchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exchanges = append(m.exchanges, *ex)
	return nil
}

func (m *Memory) ListExchanges(ctx context.Context, documentID string, limit int) ([]models.QAExchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	var out []models.QAExchange
	for i := len(m.exchanges) - 1; i >= 0; i-- {
		ex := m.exchanges[i]
		if documentID != "" && ex.DocumentID != documentID {
			continue
		}
		out = append(out, ex)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) DeleteExchangesByDocument(ctx context.Context, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.exchanges[:0]
	var deleted int64
	for _, ex := range m.exchanges {
		if ex.DocumentID == documentID {
			deleted++
			continue
		}
		kept = append(kept, ex)
	}
	m.exchanges = kept
	return deleted, nil
}

func searchResultFromChunk(ch models.Chunk, score float64) models.SearchResult {
	return models.SearchResult{
		ChunkID:    ch.ID,
		DocumentID: ch.DocumentID,
		Content:    ch.Content,
		Page:       ch.Page,
		Score:      score,
	}
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
