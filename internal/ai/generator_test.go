package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

func newTestGenerationClient(models ...string) *GenerationClient {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(models))
	for _, model := range models {
		breakers[model] = newModelBreaker(model)
	}
	return &GenerationClient{
		models:   models,
		breakers: breakers,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		timeout:  time.Second,
	}
}

func TestGenerate_FirstModelWins(t *testing.T) {
	gc := newTestGenerationClient("primary", "fallback")

	var calls []string
	var gotTemp float32
	gc.generateFn = func(ctx context.Context, model, prompt string, temperature float32) (string, error) {
		calls = append(calls, model)
		gotTemp = temperature
		return "answer from " + model, nil
	}

	answer, err := gc.Generate(context.Background(), "question", 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "answer from primary" {
		t.Fatalf("answer = %q", answer)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 upstream call, got %v", calls)
	}
	if gotTemp != 0.7 {
		t.Fatalf("temperature not passed through: %v", gotTemp)
	}
}

func TestGenerate_FailsOverDownTheChain(t *testing.T) {
	gc := newTestGenerationClient("one", "two", "three")

	var calls []string
	gc.generateFn = func(ctx context.Context, model, prompt string, temperature float32) (string, error) {
		calls = append(calls, model)
		if model != "three" {
			return "", fmt.Errorf("%s overloaded", model)
		}
		return "third time lucky", nil
	}

	answer, err := gc.Generate(context.Background(), "question", 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "third time lucky" {
		t.Fatalf("answer = %q", answer)
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 upstream calls, got %v", calls)
	}
}

func TestGenerate_ExhaustionWrapsSentinel(t *testing.T) {
	gc := newTestGenerationClient("one", "two")

	calls := 0
	gc.generateFn = func(ctx context.Context, model, prompt string, temperature float32) (string, error) {
		calls++
		return "", errors.New("quota exceeded")
	}

	_, err := gc.Generate(context.Background(), "question", 0.2)
	if !errors.Is(err, ErrModelsExhausted) {
		t.Fatalf("expected exhaustion sentinel, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestGenerate_SkipsOpenBreaker(t *testing.T) {
	gc := newTestGenerationClient("flaky", "steady")

	// Trip the first model's breaker.
	for i := 0; i < 3; i++ {
		gc.breakers["flaky"].Execute(func() (interface{}, error) {
			return nil, errors.New("boom")
		})
	}
	if gc.breakers["flaky"].State() != gobreaker.StateOpen {
		t.Fatalf("breaker not open after failures: %v", gc.breakers["flaky"].State())
	}

	var calls []string
	gc.generateFn = func(ctx context.Context, model, prompt string, temperature float32) (string, error) {
		calls = append(calls, model)
		return "ok", nil
	}

	answer, err := gc.Generate(context.Background(), "question", 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "ok" {
		t.Fatalf("answer = %q", answer)
	}
	for _, model := range calls {
		if model == "flaky" {
			t.Fatal("open breaker did not prevent the upstream call")
		}
	}
}

func TestGenerate_AllBreakersOpen(t *testing.T) {
	gc := newTestGenerationClient("only")
	for i := 0; i < 3; i++ {
		gc.breakers["only"].Execute(func() (interface{}, error) {
			return nil, errors.New("boom")
		})
	}

	calls := 0
	gc.generateFn = func(ctx context.Context, model, prompt string, temperature float32) (string, error) {
		calls++
		return "ok", nil
	}

	_, err := gc.Generate(context.Background(), "question", 0.2)
	if !errors.Is(err, ErrModelsExhausted) {
		t.Fatalf("expected exhaustion sentinel, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("open breaker still made %d upstream calls", calls)
	}
}
