package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerRegistryGetBreaker(t *testing.T) {
	registry := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)

	breaker1 := registry.GetBreaker("venue")
	if breaker1 == nil {
		t.Fatal("expected breaker to be created")
	}

	breaker2 := registry.GetBreaker("venue")
	if breaker1 != breaker2 {
		t.Error("expected same breaker instance for same name")
	}

	breaker3 := registry.GetBreaker("engine")
	if breaker1 == breaker3 {
		t.Error("expected different breaker for different name")
	}
}

func TestCircuitBreakerExecute(t *testing.T) {
	registry := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	ctx := context.Background()

	t.Run("success passes through", func(t *testing.T) {
		result, err := registry.Execute(ctx, "venue", func() (any, error) {
			return "success", nil
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "success" {
			t.Errorf("expected 'success', got %v", result)
		}
	})

	t.Run("error passes through", func(t *testing.T) {
		wantErr := errors.New("venue error")
		_, err := registry.Execute(ctx, "venue", func() (any, error) {
			return nil, wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Errorf("expected venue error, got %v", err)
		}
	})

	t.Run("cancelled context is rejected", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := registry.Execute(cancelled, "venue", func() (any, error) {
			return "should not reach", nil
		})
		if err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestCircuitBreakerTripsOnRepeatedFailures(t *testing.T) {
	registry := NewCircuitBreakerRegistry(CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		registry.Execute(ctx, "flaky", func() (any, error) {
			return nil, errors.New("down")
		})
	}

	_, err := registry.Execute(ctx, "flaky", func() (any, error) {
		t.Error("breaker should reject before calling")
		return nil, nil
	})
	if err == nil {
		t.Error("expected open-breaker rejection")
	}

	status := registry.Status()
	if status["flaky"].State != "open" {
		t.Errorf("expected flaky breaker open, got %s", status["flaky"].State)
	}
}

func TestWithCircuitBreakerTyped(t *testing.T) {
	value, err := WithCircuitBreaker(context.Background(), "typed-test", func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}

	_, err = WithCircuitBreaker(context.Background(), "typed-test", func() (int, error) {
		return 0, errors.New("boom")
	})
	if err == nil {
		t.Error("expected error")
	}
}
