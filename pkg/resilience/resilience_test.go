package resilience

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnRateLimits(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(errors.New("plain error"))
	cb.OnError(RateLimitError{Provider: "openai"})
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after one rate limit")
	}
	cb.OnError(RateLimitError{Provider: "openai"})
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}
	now = now.Add(2 * time.Minute)
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after cooldown")
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus("x", http.StatusOK, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := CheckStatus("x", http.StatusTooManyRequests, []byte("slow down")); !IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	err := CheckStatus("x", http.StatusBadRequest, []byte("bad"))
	var se StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
}
