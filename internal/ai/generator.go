package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
)

// ErrModelsExhausted is returned when every configured generation model
// failed or had an open circuit breaker. Callers degrade gracefully on it
// instead of surfacing a provider error.
var ErrModelsExhausted = errors.New("all generation models unavailable")

const maxOutputTokens = 2048

// GenerationClient runs text generation against an ordered chain of Gemini
// models. Each model gets its own circuit breaker so one misbehaving model
// does not block the chain, while a shared rate limiter keeps the whole
// client under the provider's RPM budget.
type GenerationClient struct {
	models   []string
	breakers map[string]*gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	timeout  time.Duration
	client   *genai.Client

	// generateFn performs a single model call. Swappable in tests.
	generateFn func(ctx context.Context, model, prompt string, temperature float32) (string, error)
}

func NewGenerationClient(ctx context.Context, cfg *config.Config) (*GenerationClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for generation")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, len(cfg.GenerationModels))
	for _, model := range cfg.GenerationModels {
		breakers[model] = newModelBreaker(model)
	}

	burst := cfg.GeminiRPM / 10
	if burst < 1 {
		burst = 1
	}
	// RPM limit with some buffer
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.GeminiRPM)*0.9/60.0), burst)

	gc := &GenerationClient{
		models:   cfg.GenerationModels,
		breakers: breakers,
		limiter:  limiter,
		timeout:  cfg.GenerateTimeout,
		client:   client,
	}
	gc.generateFn = gc.generate
	return gc, nil
}

func newModelBreaker(model string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini:" + model,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker opened", "breaker", name, "from", from.String())
				return
			}
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Generate runs the prompt through the model chain in order and returns the
// first successful response. A model whose breaker is open is skipped
// without an upstream call. When the whole chain fails the returned error
// wraps ErrModelsExhausted.
func (gc *GenerationClient) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	tracer := otel.Tracer("generation-client")
	ctx, span := tracer.Start(ctx, "ai.generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ai.prompt_chars", len(prompt)),
		attribute.Int("ai.models", len(gc.models)),
	)

	var lastErr error
	for i, modelName := range gc.models {
		if err := gc.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("ai.rate_limited", true))
			return "", err
		}

		result, err := gc.breakers[modelName].Execute(func() (interface{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, gc.timeout)
			defer cancel()
			return gc.generateFn(attemptCtx, modelName, prompt, temperature)
		})
		if err == nil {
			span.SetAttributes(
				attribute.String("ai.model", modelName),
				attribute.Int("ai.attempt", i+1),
			)
			return result.(string), nil
		}

		lastErr = err
		if err == gobreaker.ErrOpenState {
			logger.Debug("skipping model with open breaker", "model", modelName)
			continue
		}
		logger.Warn("generation model failed, trying next", "model", modelName, "error", err)
	}

	span.SetAttributes(attribute.Bool("ai.exhausted", true))
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrModelsExhausted, lastErr)
	}
	return "", ErrModelsExhausted
}

func (gc *GenerationClient) generate(ctx context.Context, modelName, prompt string, temperature float32) (string, error) {
	model := gc.client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxOutputTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

// extractText flattens the text parts of a response.
func extractText(resp *genai.GenerateContentResponse) string {
	totalText := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				totalText += string(text)
			}
		}
	}
	return strings.TrimSpace(totalText)
}

// Close releases the underlying API client.
func (gc *GenerationClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
