package adapter

import "context"

// Message is one prior turn half handed to the provider.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// FunctionCall is a model-issued request to invoke a backend capability.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Reply is the tagged result of one generation: plain text, or text plus
// pending tool invocations. Callers must check IsToolRequest before treating
// Text as the final answer.
type Reply struct {
	Text  string
	Calls []FunctionCall
}

func (r *Reply) IsToolRequest() bool { return r != nil && len(r.Calls) > 0 }

// ToolParam describes one parameter of a tool declaration.
type ToolParam struct {
	Name        string
	Type        string // "string" for now
	Description string
	Required    bool
}

// ToolDeclaration is a provider-agnostic function schema.
type ToolDeclaration struct {
	Name        string
	Description string
	Params      []ToolParam
}

// GenerateRequest bundles everything a provider needs for one call.
// Prompt must be non-empty; History may be empty.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	History      []Message
	Tools        []ToolDeclaration
}

// StreamChunk is one fragment of a streamed generation. The channel is
// closed when the stream ends; a chunk with Err set is terminal.
type StreamChunk struct {
	Text string
	Err  error
}

// LLMProvider is the port for a backing generative-text service.
//
// Generate never panics and, for provider-side failures, prefers returning a
// Reply whose Text carries an error tag over a bare error, so conversational
// callers always have something to show. A non-nil error is reserved for
// invalid arguments and context cancellation.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (*Reply, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error)
}
