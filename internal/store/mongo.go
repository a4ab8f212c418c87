package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docqa-platform/internal/config"
	"docqa-platform/models"
)

// Mongo implements ChunkStore, DocumentStore and HistoryStore on MongoDB.
// Similarity search uses the Atlas $vectorSearch stage when enabled and
// falls back to scoring embeddings client-side otherwise, so the platform
// also runs against plain MongoDB.
type Mongo struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
	messages  *mongo.Collection

	vectorSearchEnabled bool
	vectorIndexName     string
	keywordScore        float64
}

func NewMongo(client *mongo.Client, cfg *config.Config) *Mongo {
	db := client.Database(cfg.DBName)
	return &Mongo{
		documents:           db.Collection(models.DocumentsCollection),
		chunks:              db.Collection(models.ChunksCollection),
		messages:            db.Collection(models.MessagesCollection),
		vectorSearchEnabled: cfg.VectorSearchEnabled,
		vectorIndexName:     cfg.VectorIndexName,
		keywordScore:        cfg.KeywordFallbackScore,
	}
}

func (s *Mongo) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	for _, ch := range chunks {
		doc := bson.M{
			"document_id": ch.DocumentID,
			"content":     ch.Content,
			"page":        ch.Page,
			"order":       ch.Order,
		}
		if ch.Embedded() {
			doc["embedding"] = ch.Embedding
		}
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"document_id": ch.DocumentID, "order": ch.Order}).
			SetUpdate(bson.M{
				"$set":         doc,
				"$setOnInsert": bson.M{"_id": ch.ID, "created_at": ch.CreatedAt},
			}).
			SetUpsert(true))
	}

	_, err := s.chunks.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	return nil
}

func (s *Mongo) AttachEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	res, err := s.chunks.UpdateOne(ctx, bson.M{"_id": chunkID}, bson.M{
		"$set": bson.M{"embedding": vector},
	})
	if err != nil {
		return fmt.Errorf("failed to attach embedding: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) SimilaritySearch(ctx context.Context, vector []float32, opts SearchOptions) ([]models.SearchResult, error) {
	if opts.K <= 0 {
		return nil, nil
	}
	if s.vectorSearchEnabled {
		return s.vectorSearch(ctx, vector, opts)
	}
	return s.scanSearch(ctx, vector, opts)
}

// vectorSearch runs the Atlas $vectorSearch aggregation stage.
func (s *Mongo) vectorSearch(ctx context.Context, vector []float32, opts SearchOptions) ([]models.SearchResult, error) {
	// Over-fetch to compensate for excluded IDs dropped after the stage.
	limit := opts.K + len(opts.ExcludeIDs)
	numCandidates := limit * 20
	if numCandidates < 100 {
		numCandidates = 100
	}

	searchStage := bson.M{
		"index":         s.vectorIndexName,
		"path":          "embedding",
		"queryVector":   vector,
		"numCandidates": numCandidates,
		"limit":         limit,
	}
	if opts.DocumentID != "" {
		searchStage["filter"] = bson.M{"document_id": opts.DocumentID}
	}

	pipeline := []bson.M{
		{"$vectorSearch": searchStage},
		{"$addFields": bson.M{"search_score": bson.M{"$meta": "vectorSearchScore"}}},
	}

	cursor, err := s.chunks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	excluded := toSet(opts.ExcludeIDs)
	var results []models.SearchResult
	for cursor.Next(ctx) {
		var scored struct {
			models.Chunk `bson:",inline"`
			SearchScore  float64 `bson:"search_score"`
		}
		if err := cursor.Decode(&scored); err != nil {
			continue
		}
		if excluded[scored.ID] {
			continue
		}
		// Atlas reports (1+cosine)/2 for cosine indexes; convert back so the
		// caller's threshold applies to the raw cosine similarity.
		score := 2*scored.SearchScore - 1
		if score < opts.Threshold {
			continue
		}
		results = append(results, searchResultFromChunk(scored.Chunk, score))
		if len(results) == opts.K {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}

// scanSearch scores embedded chunks client-side. Adequate for modest corpora
// and deployments without Atlas search indexes.
func (s *Mongo) scanSearch(ctx context.Context, vector []float32, opts SearchOptions) ([]models.SearchResult, error) {
	filter := bson.M{"embedding": bson.M{"$exists": true}}
	if opts.DocumentID != "" {
		filter["document_id"] = opts.DocumentID
	}
	if len(opts.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": opts.ExcludeIDs}
	}

	cursor, err := s.chunks.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.SearchResult
	for cursor.Next(ctx) {
		var ch models.Chunk
		if err := cursor.Decode(&ch); err != nil {
			continue
		}
		if !ch.Embedded() {
			continue
		}
		score := CosineSimilarity(vector, ch.Embedding)
		if score < opts.Threshold {
			continue
		}
		results = append(results, searchResultFromChunk(ch, score))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
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

func (s *Mongo) KeywordSearch(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error) {
	if opts.K <= 0 {
		return nil, nil
	}

	filter := bson.M{
		"content": bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"},
	}
	if opts.DocumentID != "" {
		filter["document_id"] = opts.DocumentID
	}
	if len(opts.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": opts.ExcludeIDs}
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "page", Value: 1}, {Key: "order", Value: 1}}).
		SetLimit(int64(opts.K))

	cursor, err := s.chunks.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.SearchResult
	for cursor.Next(ctx) {
		var ch models.Chunk
		if err := cursor.Decode(&ch); err != nil {
			continue
		}
		results = append(results, searchResultFromChunk(ch, s.keywordScore))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	return results, nil
}

func (s *Mongo) ChunksByDocument(ctx context.Context, documentID string, limit int) ([]models.Chunk, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.chunks.Find(ctx, bson.M{"document_id": documentID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

func (s *Mongo) MissingEmbeddings(ctx context.Context, limit int) ([]models.Chunk, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.chunks.Find(ctx, bson.M{"embedding": bson.M{"$exists": false}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to load unembedded chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

func (s *Mongo) EmbeddingProgress(ctx context.Context, documentID string) (int, int, error) {
	total, err := s.chunks.CountDocuments(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	embedded, err := s.chunks.CountDocuments(ctx, bson.M{
		"document_id": documentID,
		"embedding":   bson.M{"$exists": true},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count embedded chunks: %w", err)
	}
	return int(total), int(embedded), nil
}

func (s *Mongo) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Mongo) InsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *Mongo) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

func (s *Mongo) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		// The archived text blob is only needed for reingestion.
		SetProjection(bson.M{"compressed_text": 0})
	if offset > 0 {
		findOpts.SetSkip(int64(offset))
	}
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.documents.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

func (s *Mongo) CountDocuments(ctx context.Context) (int64, error) {
	count, err := s.documents.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (s *Mongo) ArchiveExtraction(ctx context.Context, id string, compressed []byte, algorithm, title string) error {
	set := bson.M{
		"compressed_text":  compressed,
		"text_compression": algorithm,
		"updated_at":       time.Now(),
	}
	if title != "" {
		set["title"] = title
	}

	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to archive extracted text: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) UpdateDocumentStatus(ctx context.Context, id, status, failureReason string) error {
	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":         status,
			"failure_reason": failureReason,
			"updated_at":     time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) FinishDocument(ctx context.Context, id, status string, pageCount, chunkCount, embeddedCount int, failureReason string) error {
	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":         status,
			"page_count":     pageCount,
			"chunk_count":    chunkCount,
			"embedded_count": embeddedCount,
			"failure_reason": failureReason,
			"updated_at":     time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to record processing result: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) TitlesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	cursor, err := s.documents.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"title": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to load document titles: %w", err)
	}
	defer cursor.Close(ctx)

	titles := make(map[string]string, len(ids))
	for cursor.Next(ctx) {
		var doc struct {
			ID    string `bson:"_id"`
			Title string `bson:"title"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		titles[doc.ID] = doc.Title
	}
	return titles, cursor.Err()
}

func (s *Mongo) RecordExchange(ctx context.Context, ex *models.QAExchange) error {
	_, err := s.messages.InsertOne(ctx, ex)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

func (s *Mongo) ListExchanges(ctx context.Context, documentID string, limit int) ([]models.QAExchange, error) {
	filter := bson.M{}
	if documentID != "" {
		filter["document_id"] = documentID
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.messages.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer cursor.Close(ctx)

	var exchanges []models.QAExchange
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, fmt.Errorf("failed to decode exchanges: %w", err)
	}
	return exchanges, nil
}

func (s *Mongo) DeleteExchangesByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete exchanges: %w", err)
	}
	return res.DeletedCount, nil
}
