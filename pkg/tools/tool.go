package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/harunnryd/datau/pkg/chart"
	"github.com/harunnryd/datau/pkg/configutil"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/llm"
	"github.com/harunnryd/datau/pkg/logging"
	"github.com/invopop/jsonschema"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Tool is one function the model may call.
type Tool interface {
	Definition() llm.Tool
	Invoke(ctx context.Context, call llm.ToolCall) Result
}

// Result is the outcome of one tool invocation.
type Result struct {
	CallID string
	Name   string
	// Content is what the model sees.
	Content string
	Figure  *chart.Figure
	// Display marks results shown to the user as separate elements.
	Display bool
	Status  Status
	Err     error
}

func (r Result) OK() bool { return r.Status == StatusOK }

func okResult(call llm.ToolCall, content string) Result {
	return Result{CallID: call.ID, Name: call.Name, Content: content, Status: StatusOK}
}

func errorResult(call llm.ToolCall, err error) Result {
	return Result{CallID: call.ID, Name: call.Name, Content: "Error: " + err.Error(), Status: StatusError, Err: err}
}

// schemaFor reflects the parameter schema of an argument struct.
func schemaFor(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}

// decodeArgs validates required keys and decodes call arguments into out.
func decodeArgs(call llm.ToolCall, schema *jsonschema.Schema, out any) error {
	var optional []string
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			optional = append(optional, pair.Key)
		}
	}
	if err := configutil.ValidateSettings(call.Arguments, configutil.Schema{
		Required:   schema.Required,
		Optional:   optional,
		AllowEmpty: true,
	}); err != nil {
		return errorsx.Wrapf(err, errorsx.ReasonToolArgs, "invalid arguments for %s", call.Name)
	}
	if err := configutil.DecodeSettings(call.Arguments, out); err != nil {
		return errorsx.Wrapf(err, errorsx.ReasonToolArgs, "invalid arguments for %s", call.Name)
	}
	return nil
}

// rejectNulls fails when an array argument holds a null element, which the
// weakly typed decode would otherwise turn into a zero value.
func rejectNulls(call llm.ToolCall, keys ...string) error {
	for _, key := range keys {
		items, ok := call.Arguments[key].([]any)
		if !ok {
			continue
		}
		for i, v := range items {
			if v == nil {
				return errorsx.New(errorsx.ReasonToolArgs,
					fmt.Sprintf("invalid arguments for %s: %s[%d] is null", call.Name, key, i))
			}
		}
	}
	return nil
}

// Registry is the fixed set of tools offered to the model.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger, list ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(list)), logger: logging.NewComponentLogger(logger, "tools")}
	for _, t := range list {
		name := t.Definition().Name
		if _, dup := r.tools[name]; !dup {
			r.order = append(r.order, name)
		}
		r.tools[name] = t
	}
	return r
}

// Definitions returns the tool schemas in registration order.
func (r *Registry) Definitions() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

func (r *Registry) Names() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Invoke dispatches call by name. Unknown names and panics become error results.
func (r *Registry) Invoke(ctx context.Context, call llm.ToolCall) (res Result) {
	t, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("tool_unknown", slog.String("tool", call.Name))
		return errorResult(call, errorsx.New(errorsx.ReasonToolName, fmt.Sprintf("unknown tool %q", call.Name)))
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool_panic", slog.String("tool", call.Name), slog.Any("panic", p))
			res = errorResult(call, fmt.Errorf("tool %s failed: %v", call.Name, p))
		}
	}()
	res = t.Invoke(ctx, call)
	res.CallID, res.Name = call.ID, call.Name
	if res.Status == "" {
		res.Status = StatusOK
	}
	if !res.OK() {
		r.logger.Warn("tool_failed",
			slog.String("tool", call.Name),
			slog.String("reason", string(errorsx.Reason(res.Err))),
			slog.Any("error", res.Err))
	}
	return res
}
