package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Tool is the declarative description of a callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	Schema      any
}

// Message is one entry of conversation history.
type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCall
	// ToolCallID and Name are set on tool messages.
	ToolCallID string
	Name       string
}

func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }
func UserMessage(text string) Message   { return Message{Role: RoleUser, Content: text} }

// ToolMessage carries a tool result back to the model.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

type Context struct {
	Messages []Message
	Tools    []Tool
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
	ToolCalls    []ToolCall
}

// HasToolCalls reports whether the model asked for at least one tool invocation.
func (r Response) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Message converts the response into the assistant history entry.
func (r Response) Message() Message {
	return Message{Role: RoleAssistant, Content: r.Text, ToolCalls: r.ToolCalls}
}

type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}
