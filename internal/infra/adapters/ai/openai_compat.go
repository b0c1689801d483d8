package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/ports/adapter"
)

// Compile-time assurance this provider satisfies the port
var _ adapter.LLMProvider = (*OpenAICompatProvider)(nil)

// OpenAICompatProvider talks to any Chat Completions compatible gateway.
// It is the fallback when no Gemini credentials are configured; it does not
// support tool calling or server-side streaming, so streams degrade to a
// single fragment.
type OpenAICompatProvider struct {
	apiKey string
	base   string // e.g., https://api.openai.com/v1
	model  string
	client *http.Client
}

func NewOpenAICompatProvider(apiKey, model, base string) (*OpenAICompatProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai-compat api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAICompatProvider{
		apiKey: apiKey,
		base:   strings.TrimRight(base, "/"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAICompatProvider) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.Reply, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}

	msgs := make([]adapter.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, adapter.Message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, adapter.Message{Role: "user", Content: req.Prompt})

	reqBody := struct {
		Model    string            `json:"model"`
		Messages []adapter.Message `json:"messages"`
	}{Model: o.model, Messages: msgs}

	b, _ := json.Marshal(reqBody)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return &adapter.Reply{Text: fmt.Sprintf("Error: %v", err)}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &adapter.Reply{Text: fmt.Sprintf("Error: chat completions http %d", resp.StatusCode)}, nil
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &adapter.Reply{Text: fmt.Sprintf("Error: %v", err)}, nil
	}
	if len(parsed.Choices) == 0 {
		return &adapter.Reply{Text: "Error: empty completion"}, nil
	}
	return &adapter.Reply{Text: parsed.Choices[0].Message.Content}, nil
}

func (o *OpenAICompatProvider) GenerateStream(ctx context.Context, req adapter.GenerateRequest) (<-chan adapter.StreamChunk, error) {
	reply, err := o.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(chan adapter.StreamChunk, 1)
	out <- adapter.StreamChunk{Text: reply.Text}
	close(out)
	return out, nil
}
