package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/ports/adapter"
	"delta-backend/internal/infra/metrics"
)

var _ adapter.LLMProvider = (*GeminiProvider)(nil)

// FallbackModel is substituted when the configured model id 404s.
const FallbackModel = "gemini-2.0-flash"

// GeminiProvider implements adapter.LLMProvider on the official genai SDK.
// It supports both the API-key backend and the managed Vertex backend.
type GeminiProvider struct {
	client *genai.Client
	// model may be rewritten by the 404 fallback. Two concurrent 404s can
	// race on this write; the effect is idempotent so it stays unguarded.
	model string
	log   *zerolog.Logger
}

type GeminiConfig struct {
	APIKey   string
	Model    string
	Project  string // non-empty selects the Vertex backend
	Location string
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, logger *zerolog.Logger) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{}
	if cfg.Project != "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("gemini: empty api key")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = FallbackModel
	}
	l := logger.With().Str("component", "GeminiProvider").Logger()
	return &GeminiProvider{client: c, model: model, log: &l}, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.Reply, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}
	contents := toContents(req.History, req.Prompt)
	config := g.callConfig(req)

	var resp *genai.GenerateContentResponse
	call := func() error {
		var err error
		start := time.Now()
		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		metrics.ObserveLLMCall("gemini", g.model, time.Since(start), err == nil)
		return err
	}

	err := generatePolicy.Do(ctx, call)
	if err != nil && isModelNotFound(err) {
		// Swap to a known-good model once and restart the attempt counter.
		g.log.Warn().Str("model", g.model).Str("fallback", FallbackModel).Msg("model not found, falling back")
		g.model = FallbackModel
		err = generatePolicy.Do(ctx, call)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.Error().Err(err).Msg("generation failed")
		return &adapter.Reply{Text: fmt.Sprintf("Error: %v", err)}, nil
	}
	return parseResponse(resp), nil
}

func (g *GeminiProvider) GenerateStream(ctx context.Context, req adapter.GenerateRequest) (<-chan adapter.StreamChunk, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}
	contents := toContents(req.History, req.Prompt)
	config := g.callConfig(req)

	out := make(chan adapter.StreamChunk, 8)
	go func() {
		defer close(out)
		run := func() error { return g.streamOnce(ctx, contents, config, out) }
		err := streamPolicy.Do(ctx, run)
		if err != nil && isModelNotFound(err) {
			g.log.Warn().Str("model", g.model).Str("fallback", FallbackModel).Msg("model not found, falling back")
			g.model = FallbackModel
			err = streamPolicy.Do(ctx, run)
		}
		if err != nil && ctx.Err() == nil {
			g.log.Error().Err(err).Msg("stream failed")
			out <- adapter.StreamChunk{Text: fmt.Sprintf("Error: %v", err)}
		}
	}()
	return out, nil
}

// streamOnce establishes one stream and drains it into out. Establishment
// failures (no chunk delivered yet) are returned for the retry policy;
// chunks without decodable text are skipped, not fatal.
func (g *GeminiProvider) streamOnce(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, out chan<- adapter.StreamChunk) error {
	delivered := false
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			if !delivered {
				return err
			}
			g.log.Warn().Err(err).Msg("mid-stream chunk error, skipping")
			continue
		}
		text := textOf(resp)
		if text == "" {
			continue
		}
		delivered = true
		select {
		case out <- adapter.StreamChunk{Text: text}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (g *GeminiProvider) callConfig(req adapter.GenerateRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = toGenAITools(req.Tools)
	}
	return config
}

var generatePolicy = RetryPolicy{
	MaxAttempts: 6,
	BaseDelay:   time.Second,
	Retryable:   IsRateLimited,
	DelayHint:   SuggestedDelay,
}

var streamPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	Retryable:   IsRateLimited,
	DelayHint:   SuggestedDelay,
}

// toContents converts stored history plus the new prompt into the provider's
// native turn format. "user" maps to the user role; anything else defaults
// to the model role.
func toContents(history []adapter.Message, prompt string) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.RoleModel
		if strings.ToLower(m.Role) == "user" {
			role = genai.RoleUser
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	out = append(out, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	})
	return out
}

func toGenAITools(tools []adapter.ToolDeclaration) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Params))
		var required []string
		for _, p := range t.Params {
			props[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// parseResponse inspects each response segment for text and function-call
// payloads, returning the tagged Reply form.
func parseResponse(resp *genai.GenerateContentResponse) *adapter.Reply {
	reply := &adapter.Reply{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			reply.Calls = append(reply.Calls, adapter.FunctionCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	reply.Text = sb.String()
	return reply
}

func textOf(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NOT_FOUND") ||
		(strings.Contains(msg, "404") && strings.Contains(strings.ToLower(msg), "model"))
}
