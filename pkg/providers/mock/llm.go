package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/datau/pkg/llm"
)

// LLMConfig scripts the mock model. Responses are returned in order; once
// exhausted the last one repeats. Err, when set, is returned from every call.
type LLMConfig struct {
	ResponseText string
	Responses    []llm.Response
	Err          error
}

type LLMAdapter struct {
	cfg LLMConfig

	mu    sync.Mutex
	calls []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := llm.Context{
		Messages: append([]llm.Message(nil), input.Messages...),
		Tools:    input.Tools,
	}
	a.calls = append(a.calls, snapshot)
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if len(a.cfg.Responses) == 0 {
		return llm.Response{Text: a.cfg.ResponseText, FinishReason: "stop"}, nil
	}
	idx := len(a.calls) - 1
	if idx >= len(a.cfg.Responses) {
		idx = len(a.cfg.Responses) - 1
	}
	return a.cfg.Responses[idx], nil
}

// Calls returns the contexts the adapter was invoked with.
func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Context(nil), a.calls...)
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)
