package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/datau/pkg/metrics"
	"github.com/harunnryd/datau/pkg/resilience"
)

type failingAdapter struct {
	calls int
	err   error
}

func (f *failingAdapter) Name() string { return "failing" }

func (f *failingAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	f.calls++
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Text: "ok"}, nil
}

func TestCircuitBreakerAdapterFailsFastWhenOpen(t *testing.T) {
	inner := &failingAdapter{err: resilience.RateLimitError{Provider: "failing"}}
	mem := metrics.NewMemoryObserver()
	a := NewCircuitBreakerAdapter(inner, resilience.NewCircuitBreaker(1, time.Hour))
	a.SetObserver(mem)

	if _, err := a.Generate(context.Background(), Context{}); !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if _, err := a.Generate(context.Background(), Context{}); !resilience.IsRateLimit(err) {
		t.Fatalf("expected degraded error, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner called once, got %d", inner.calls)
	}
	if len(mem.Named(metrics.EventBreakerOpen)) != 1 {
		t.Fatalf("expected breaker_open event")
	}
}

func TestCircuitBreakerAdapterPassesThrough(t *testing.T) {
	inner := &failingAdapter{}
	a := NewCircuitBreakerAdapter(inner, nil)
	resp, err := a.Generate(context.Background(), Context{})
	if err != nil || resp.Text != "ok" {
		t.Fatalf("unexpected result %+v %v", resp, err)
	}
	inner.err = errors.New("boom")
	if _, err := a.Generate(context.Background(), Context{}); err == nil {
		t.Fatalf("expected error")
	}
}
