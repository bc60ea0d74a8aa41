package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/datau/pkg/chart"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/llm"
	"github.com/harunnryd/datau/pkg/logging"
	"github.com/harunnryd/datau/pkg/metrics"
	"github.com/harunnryd/datau/pkg/redact"
	"github.com/harunnryd/datau/pkg/resilience"
	"github.com/harunnryd/datau/pkg/tools"
)

// MaxIterations bounds the tool rounds of a single turn.
const MaxIterations = 5

type OutputKind string

const (
	OutputText  OutputKind = "text"
	OutputChart OutputKind = "chart"
)

// Output is one element shown to the user, in emission order.
type Output struct {
	Kind   OutputKind
	Text   string
	Figure *chart.Figure
	// Iteration is the model call the output belongs to, starting at 1.
	Iteration int
}

// Step is one tool invocation as shown in the UI.
type Step struct {
	Name   string
	Input  string
	Output string
	Status tools.Status
}

type TurnResult struct {
	Outputs []Output
	Steps   []Step
	// Iterations counts model calls; ToolRounds counts executed tool rounds.
	Iterations int
	ToolRounds int
	// Truncated is set when MaxIterations was reached with tool calls pending.
	Truncated bool
}

// Replies returns the text outputs in order.
func (r TurnResult) Replies() []string {
	var out []string
	for _, o := range r.Outputs {
		if o.Kind == OutputText {
			out = append(out, o.Text)
		}
	}
	return out
}

type Config struct {
	SystemPrompt string
	LLM          llm.LLMAdapter
	Tools        *tools.Registry
	Observer     metrics.Observer
	Logger       *slog.Logger
	SessionID    string
	TraceID      string
}

// Bot owns one session's history and drives the tool-calling loop.
type Bot struct {
	llm     llm.LLMAdapter
	tools   *tools.Registry
	obs     metrics.Observer
	logger  *slog.Logger
	tags    map[string]string
	mu      sync.Mutex
	history []llm.Message
}

func New(cfg Config) *Bot {
	b := &Bot{
		llm:    cfg.LLM,
		tools:  cfg.Tools,
		obs:    metrics.OrNoop(cfg.Observer),
		logger: logging.NewComponentLogger(cfg.Logger, "conversation").With(slog.String("session_id", cfg.SessionID)),
		tags:   map[string]string{"session_id": cfg.SessionID, "trace_id": cfg.TraceID},
	}
	if b.tools == nil {
		b.tools = tools.NewRegistry(cfg.Logger)
	}
	if cfg.SystemPrompt != "" {
		b.history = append(b.history, llm.SystemMessage(cfg.SystemPrompt))
	}
	return b
}

// History returns a copy of the conversation so far.
func (b *Bot) History() []llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Message(nil), b.history...)
}

// Turn runs one user message to completion. On a model error the history is
// restored to its state before the turn and no outputs are returned.
func (b *Bot) Turn(ctx context.Context, text string) (TurnResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	mark := len(b.history)
	b.logger.Info("turn_started", slog.String("text", redact.Preview(text, 120)))
	b.history = append(b.history, llm.UserMessage(text))

	var res TurnResult
	resp, err := b.generate(ctx, &res)
	if err != nil {
		return b.fail(mark, res, err)
	}
	res.addReply(resp.Text)

	for resp.HasToolCalls() {
		if res.ToolRounds == MaxIterations {
			res.Truncated = true
			break
		}
		res.ToolRounds++
		b.history = append(b.history, resp.Message())
		var charts []Output
		for _, call := range resp.ToolCalls {
			r := b.invoke(ctx, call)
			b.history = append(b.history, llm.ToolMessage(r.CallID, r.Name, r.Content))
			res.Steps = append(res.Steps, Step{Name: r.Name, Input: argsJSON(call.Arguments), Output: r.Content, Status: r.Status})
			if r.Display && r.Figure != nil {
				charts = append(charts, Output{Kind: OutputChart, Figure: r.Figure, Iteration: res.Iterations + 1})
			}
		}
		resp, err = b.generate(ctx, &res)
		if err != nil {
			return b.fail(mark, res, err)
		}
		res.addReply(resp.Text)
		res.Outputs = append(res.Outputs, charts...)
	}

	if res.Truncated {
		b.logger.Warn("turn_truncated",
			slog.Int("tool_rounds", res.ToolRounds),
			slog.Int("pending_calls", len(resp.ToolCalls)))
		b.record(metrics.EventTurnTruncated, float64(res.ToolRounds), nil)
	} else {
		b.history = append(b.history, resp.Message())
	}
	b.record(metrics.EventTurnComplete, float64(time.Since(start).Milliseconds()), map[string]any{
		"iterations":  res.Iterations,
		"tool_rounds": res.ToolRounds,
		"outputs":     len(res.Outputs),
	})
	b.logger.Info("turn_completed",
		slog.Int("iterations", res.Iterations),
		slog.Int("tool_rounds", res.ToolRounds),
		slog.Bool("truncated", res.Truncated))
	return res, nil
}

func (r *TurnResult) addReply(text string) {
	if text != "" {
		r.Outputs = append(r.Outputs, Output{Kind: OutputText, Text: text, Iteration: r.Iterations})
	}
}

func (b *Bot) generate(ctx context.Context, res *TurnResult) (llm.Response, error) {
	res.Iterations++
	start := time.Now()
	resp, err := b.llm.Generate(ctx, llm.Context{
		Messages: append([]llm.Message(nil), b.history...),
		Tools:    b.tools.Definitions(),
	})
	fields := map[string]any{
		"latency_ms": time.Since(start).Milliseconds(),
		"iteration":  res.Iterations,
	}
	if err == nil {
		fields["total_tokens"] = resp.Usage.TotalTokens
		fields["tool_calls"] = len(resp.ToolCalls)
	}
	b.record(metrics.EventLLMCall, float64(time.Since(start).Milliseconds()), fields)
	return resp, err
}

func (b *Bot) invoke(ctx context.Context, call llm.ToolCall) tools.Result {
	start := time.Now()
	r := b.tools.Invoke(ctx, call)
	ev := metrics.MetricsEvent{
		Name:  metrics.EventToolCall,
		Time:  time.Now(),
		Value: float64(time.Since(start).Milliseconds()),
		Tags:  b.eventTags(),
	}
	ev.Tags["tool"] = r.Name
	ev.Tags["status"] = string(r.Status)
	b.obs.RecordEvent(ev)
	return r
}

func (b *Bot) fail(mark int, res TurnResult, err error) (TurnResult, error) {
	b.history = b.history[:mark]
	reason := errorsx.ReasonLLMGenerate
	if resilience.IsRateLimit(err) {
		reason = errorsx.ReasonLLMRateLimit
	}
	err = errorsx.Wrap(err, reason)
	b.logger.Error("llm_generate_error",
		slog.String("reason_code", string(errorsx.Reason(err))),
		slog.Int("iteration", res.Iterations),
		slog.Any("error", err))
	b.record(metrics.EventTurnFailed, 0, map[string]any{"reason": string(reason)})
	return TurnResult{Iterations: res.Iterations, ToolRounds: res.ToolRounds}, err
}

func (b *Bot) record(name string, value float64, fields map[string]any) {
	b.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Value:  value,
		Tags:   b.eventTags(),
		Fields: fields,
	})
}

func (b *Bot) eventTags() map[string]string {
	out := make(map[string]string, len(b.tags)+2)
	for k, v := range b.tags {
		out[k] = v
	}
	return out
}

func argsJSON(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
