package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonLLMGenerate, Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonQuery)
	second := Wrap(first, ReasonLLMGenerate)
	if Reason(second) != ReasonQuery {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("turn: %w", Wrap(assertErr{}, ReasonTranscribe))
	if Reason(err) != ReasonTranscribe {
		t.Fatalf("expected reason %s, got %s", ReasonTranscribe, Reason(err))
	}
	if !errors.Is(err, assertErr{}) {
		t.Fatalf("expected wrapped error to unwrap to cause")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonConfig) != nil {
		t.Fatalf("expected nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
