package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/datau/pkg/llm"
	"github.com/harunnryd/datau/pkg/resilience"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Adapter struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	Client      *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = "gpt-4o"
	}
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) MapTools(tools []llm.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Schema,
			},
		})
	}
	return out
}

// ToProviderFormat converts history into chat-completions messages.
func (a *Adapter) ToProviderFormat(messages []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		msg := map[string]any{"role": string(m.Role)}
		switch m.Role {
		case llm.RoleTool:
			msg["tool_call_id"] = m.ToolCallID
			msg["content"] = m.Content
		case llm.RoleAssistant:
			if m.Content != "" || len(m.ToolCalls) == 0 {
				msg["content"] = m.Content
			} else {
				msg["content"] = nil
			}
			if len(m.ToolCalls) > 0 {
				calls := make([]map[string]any, 0, len(m.ToolCalls))
				for _, c := range m.ToolCalls {
					args, _ := json.Marshal(c.Arguments)
					if c.Arguments == nil {
						args = []byte("{}")
					}
					calls = append(calls, map[string]any{
						"id":   c.ID,
						"type": "function",
						"function": map[string]any{
							"name":      c.Name,
							"arguments": string(args),
						},
					})
				}
				msg["tool_calls"] = calls
			}
		default:
			msg["content"] = m.Content
		}
		out = append(out, msg)
	}
	return out
}

func (a *Adapter) FromProviderFormat(raw any) (llm.Response, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return llm.Response{}, errors.New("invalid response")
	}
	choices, _ := m["choices"].([]any)
	if len(choices) == 0 {
		return llm.Response{}, errors.New("no choices")
	}
	first, _ := choices[0].(map[string]any)
	msg, _ := first["message"].(map[string]any)
	content, _ := msg["content"].(string)
	resp := llm.Response{Text: content}
	if reason, _ := first["finish_reason"].(string); reason != "" {
		resp.FinishReason = reason
	}
	if usage, ok := m["usage"].(map[string]any); ok {
		resp.Usage = llm.Usage{
			PromptTokens:     intValue(usage["prompt_tokens"]),
			CompletionTokens: intValue(usage["completion_tokens"]),
			TotalTokens:      intValue(usage["total_tokens"]),
		}
	}
	if tc, ok := msg["tool_calls"].([]any); ok {
		for _, item := range tc {
			call, _ := item.(map[string]any)
			fn, _ := call["function"].(map[string]any)
			argsRaw, _ := fn["arguments"].(string)
			args := map[string]any{}
			_ = json.Unmarshal([]byte(argsRaw), &args)
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:        stringValue(call["id"]),
				Name:      stringValue(fn["name"]),
				Arguments: args,
			})
		}
	}
	return resp, nil
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	body, err := a.buildRequest(input)
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.applyAuth(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.CheckStatus(a.Name(), resp.StatusCode, raw)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, err
	}
	return a.FromProviderFormat(payload)
}

func (a *Adapter) buildRequest(input llm.Context) (*bytes.Buffer, error) {
	req := map[string]any{
		"model":    a.Model,
		"messages": a.ToProviderFormat(input.Messages),
	}
	if a.Temperature != nil {
		req["temperature"] = *a.Temperature
	}
	if len(input.Tools) > 0 {
		req["tools"] = a.MapTools(input.Tools)
		req["tool_choice"] = "auto"
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) applyAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) baseURL() string {
	if a.BaseURL == "" {
		return DefaultBaseURL
	}
	return a.BaseURL
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	f, _ := v.(float64)
	return int(f)
}

var _ llm.LLMAdapter = (*Adapter)(nil)
