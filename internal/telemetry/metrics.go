package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	IngestDuration  metric.Float64Histogram
	ChunksEmbedded  metric.Int64Counter
	QuestionsAsked  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docqa-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"document.ingest.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksEmbedded, err := meter.Int64Counter(
		"embedding.chunks.embedded",
		metric.WithDescription("Total chunks embedded"),
	)
	if err != nil {
		return nil, err
	}

	questionsAsked, err := meter.Int64Counter(
		"qa.questions.total",
		metric.WithDescription("Total questions answered"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		IngestDuration:  ingestDuration,
		ChunksEmbedded:  chunksEmbedded,
		QuestionsAsked:  questionsAsked,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngest records document ingestion metrics
func (m *Metrics) RecordIngest(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("ingest.status", status),
		attribute.String("service", "ingest"),
	}

	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChunksEmbedded records how many chunks gained embeddings
func (m *Metrics) RecordChunksEmbedded(count int64, source string) {
	attrs := []attribute.KeyValue{
		attribute.String("embedding.source", source),
	}

	m.ChunksEmbedded.Add(context.Background(), count, metric.WithAttributes(attrs...))
}

// RecordQuestion records a question/answer exchange outcome
func (m *Metrics) RecordQuestion(outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("qa.outcome", outcome),
	}

	m.QuestionsAsked.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
