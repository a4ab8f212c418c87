package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"docqa-platform/models"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestInsertChunks_ReinsertKeepsIdentity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "c1", DocumentID: "d", Content: "original", Page: 1, Order: 0},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Same (document, order) slot under a fresh ID: the original ID wins.
	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "c1-regenerated", DocumentID: "d", Content: "updated", Page: 2, Order: 0},
	}); err != nil {
		t.Fatalf("reinsert: %v", err)
	}

	chunks, err := m.ChunksByDocument(ctx, "d", 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "c1" {
		t.Fatalf("reinsert changed chunk ID to %q", chunks[0].ID)
	}
	if chunks[0].Content != "updated" || chunks[0].Page != 2 {
		t.Fatalf("reinsert did not update fields: %+v", chunks[0])
	}
}

func TestSimilaritySearch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "exact", DocumentID: "d1", Content: "a", Page: 1, Order: 0, Embedding: []float32{1, 0}},
		{ID: "close", DocumentID: "d1", Content: "b", Page: 2, Order: 1, Embedding: []float32{0.9, 0.43}},
		{ID: "far", DocumentID: "d1", Content: "c", Page: 3, Order: 2, Embedding: []float32{0, 1}},
		{ID: "other-doc", DocumentID: "d2", Content: "d", Page: 1, Order: 0, Embedding: []float32{1, 0}},
		{ID: "unembedded", DocumentID: "d1", Content: "e", Page: 4, Order: 3},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := m.SimilaritySearch(ctx, []float32{1, 0}, SearchOptions{K: 10, Threshold: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results above threshold, got %d", len(results))
	}
	if results[0].ChunkID != "exact" && results[0].ChunkID != "other-doc" {
		t.Fatalf("best match should score 1.0, got %s", results[0].ChunkID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatal("results not in descending score order")
		}
	}

	// Document scope.
	scoped, err := m.SimilaritySearch(ctx, []float32{1, 0}, SearchOptions{K: 10, Threshold: 0.5, DocumentID: "d2"})
	if err != nil {
		t.Fatalf("scoped search: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ChunkID != "other-doc" {
		t.Fatalf("scope leak: %+v", scoped)
	}

	// Exclusions and the k cap.
	capped, err := m.SimilaritySearch(ctx, []float32{1, 0}, SearchOptions{K: 1, Threshold: -1, ExcludeIDs: []string{"exact"}})
	if err != nil {
		t.Fatalf("capped search: %v", err)
	}
	if len(capped) != 1 || capped[0].ChunkID == "exact" {
		t.Fatalf("exclusion or cap ignored: %+v", capped)
	}

	// k <= 0 disables the search entirely.
	none, err := m.SimilaritySearch(ctx, []float32{1, 0}, SearchOptions{K: 0})
	if err != nil || none != nil {
		t.Fatalf("k=0 should return nothing, got %v, %v", none, err)
	}
}

func TestKeywordSearch_PageOrderAndFixedScore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "p3", DocumentID: "d1", Content: "TURBINE maintenance", Page: 3, Order: 5},
		{ID: "p1", DocumentID: "d1", Content: "turbine overview", Page: 1, Order: 0},
		{ID: "p2", DocumentID: "d1", Content: "the Turbine room", Page: 2, Order: 3},
		{ID: "none", DocumentID: "d1", Content: "unrelated text", Page: 4, Order: 6},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := m.KeywordSearch(ctx, "Turbine", SearchOptions{K: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 case-insensitive matches, got %d", len(results))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if results[i].ChunkID != want {
			t.Fatalf("result %d = %s, want %s (page order)", i, results[i].ChunkID, want)
		}
		if results[i].Score != m.KeywordScore {
			t.Fatalf("result %d score = %v, want fixed %v", i, results[i].Score, m.KeywordScore)
		}
	}

	empty, err := m.KeywordSearch(ctx, "zeppelin", SearchOptions{K: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no matches, got %d", len(empty))
	}
}

func TestMissingEmbeddings_OldestFirstWithLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "a", DocumentID: "d", Order: 0},
		{ID: "b", DocumentID: "d", Order: 1, Embedding: []float32{1, 0}},
		{ID: "c", DocumentID: "d", Order: 2},
		{ID: "d", DocumentID: "d", Order: 3},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	missing, err := m.MissingEmbeddings(ctx, 2)
	if err != nil {
		t.Fatalf("missing: %v", err)
	}
	if len(missing) != 2 || missing[0].ID != "a" || missing[1].ID != "c" {
		t.Fatalf("expected oldest two unembedded [a c], got %+v", missing)
	}

	if err := m.AttachEmbedding(ctx, "a", []float32{0, 1}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	missing, err = m.MissingEmbeddings(ctx, 0)
	if err != nil {
		t.Fatalf("missing: %v", err)
	}
	if len(missing) != 2 || missing[0].ID != "c" || missing[1].ID != "d" {
		t.Fatalf("expected [c d] after attach, got %+v", missing)
	}
}

func TestEmbeddingProgress(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "a", DocumentID: "d", Order: 0, Embedding: []float32{1, 0}},
		{ID: "b", DocumentID: "d", Order: 1, Embedding: []float32{0, 1}},
		{ID: "c", DocumentID: "d", Order: 2},
		{ID: "x", DocumentID: "other", Order: 0},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	total, embedded, err := m.EmbeddingProgress(ctx, "d")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if total != 3 || embedded != 2 {
		t.Fatalf("progress = %d/%d, want 2/3 embedded", embedded, total)
	}
}

func TestDeleteByDocument(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.InsertChunks(ctx, []models.Chunk{
		{ID: "a", DocumentID: "keep", Order: 0},
		{ID: "b", DocumentID: "drop", Order: 0},
		{ID: "c", DocumentID: "drop", Order: 1},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := m.DeleteByDocument(ctx, "drop")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	remaining, err := m.ChunksByDocument(ctx, "keep", 0)
	if err != nil || len(remaining) != 1 {
		t.Fatalf("other document's chunks affected: %v, %v", remaining, err)
	}
	gone, err := m.ChunksByDocument(ctx, "drop", 0)
	if err != nil || len(gone) != 0 {
		t.Fatalf("deleted document still has chunks: %v, %v", gone, err)
	}

	// The freed (document, order) slots accept fresh inserts.
	if err := m.InsertChunks(ctx, []models.Chunk{{ID: "b2", DocumentID: "drop", Order: 0}}); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	back, _ := m.ChunksByDocument(ctx, "drop", 0)
	if len(back) != 1 || back[0].ID != "b2" {
		t.Fatalf("slot not freed after delete: %+v", back)
	}
}

func TestListDocuments_NewestFirstWithPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		if err := m.InsertDocument(ctx, &models.Document{ID: id, Title: id}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	docs, err := m.ListDocuments(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 || docs[0].ID != "third" || docs[2].ID != "first" {
		t.Fatalf("expected newest first [third second first], got %+v", docs)
	}

	page, err := m.ListDocuments(ctx, 1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "second" {
		t.Fatalf("offset 1 limit 1 = %+v, want [second]", page)
	}

	past, err := m.ListDocuments(ctx, 10, 99)
	if err != nil || past != nil {
		t.Fatalf("offset past end should be empty, got %v, %v", past, err)
	}

	count, err := m.CountDocuments(ctx)
	if err != nil || count != 3 {
		t.Fatalf("count = %d, %v", count, err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.DocumentByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.InsertDocument(ctx, &models.Document{ID: "d1", Status: models.StatusPending}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := m.ArchiveExtraction(ctx, "d1", []byte("compressed"), "gzip", "Extracted Title"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := m.FinishDocument(ctx, "d1", models.StatusPartial, 4, 10, 8, "2 of 10 chunks missing embeddings"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	doc, err := m.DocumentByID(ctx, "d1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Status != models.StatusPartial || doc.PageCount != 4 || doc.ChunkCount != 10 || doc.EmbeddedCount != 8 {
		t.Fatalf("finish did not stick: %+v", doc)
	}
	if doc.Title != "Extracted Title" || string(doc.CompressedText) != "compressed" {
		t.Fatalf("archive did not stick: %+v", doc)
	}

	if err := m.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteDocument(ctx, "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should be ErrNotFound, got %v", err)
	}
}

func TestTitlesByIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.InsertDocument(ctx, &models.Document{ID: "d1", Title: "Manual"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	titles, err := m.TitlesByIDs(ctx, []string{"d1", "missing"})
	if err != nil {
		t.Fatalf("titles: %v", err)
	}
	if titles["d1"] != "Manual" {
		t.Fatalf("titles[d1] = %q", titles["d1"])
	}
	if _, ok := titles["missing"]; ok {
		t.Fatal("missing document produced a title entry")
	}
}

func TestExchanges_NewestFirstAndScoped(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i, q := range []string{"first", "second", "third"} {
		docID := "d1"
		if i == 1 {
			docID = "d2"
		}
		if err := m.RecordExchange(ctx, &models.QAExchange{ID: q, DocumentID: docID, Query: q}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := m.ListExchanges(ctx, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Query != "third" || all[2].Query != "first" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	scoped, err := m.ListExchanges(ctx, "d2", 0)
	if err != nil {
		t.Fatalf("scoped list: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Query != "second" {
		t.Fatalf("scope leak: %+v", scoped)
	}

	limited, err := m.ListExchanges(ctx, "", 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("limit ignored: %v, %v", limited, err)
	}
}

func TestDeleteExchangesByDocument(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, ex := range []models.QAExchange{
		{ID: "e1", DocumentID: "d1"},
		{ID: "e2", DocumentID: "d2"},
		{ID: "e3", DocumentID: "d1"},
	} {
		ex := ex
		if err := m.RecordExchange(ctx, &ex); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	deleted, err := m.DeleteExchangesByDocument(ctx, "d1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	left, err := m.ListExchanges(ctx, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 || left[0].ID != "e2" {
		t.Fatalf("survivors = %+v", left)
	}

	deleted, err = m.DeleteExchangesByDocument(ctx, "ghost")
	if err != nil || deleted != 0 {
		t.Fatalf("ghost delete = %d, %v", deleted, err)
	}
}
