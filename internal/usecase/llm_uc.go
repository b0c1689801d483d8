package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"delta-backend/internal/domain/ports/adapter"
)

// Compile-time check
var _ LLMService = (*llmSvc)(nil)

// TranscriptLine is one "sender: content" entry of a summarization input.
type TranscriptLine struct {
	Sender  string
	Content string
}

// LLMService presents one stable generation API regardless of which
// concrete provider backs it, and attaches role-specific system prompts
// and tool schemas.
type LLMService interface {
	GenerateResponse(ctx context.Context, userInput string, role Role, history []adapter.Message) (*adapter.Reply, error)
	GenerateStream(ctx context.Context, userInput string, role Role, history []adapter.Message) (<-chan adapter.StreamChunk, error)
	GenerateSummaryFromMessages(ctx context.Context, lines []TranscriptLine) (string, error)
}

// summaryTokenBudget bounds the transcript handed to the summarizer. Older
// turns are dropped from the front when the budget is exceeded.
const summaryTokenBudget = 6000

type llmSvc struct {
	provider adapter.LLMProvider
	log      *zerolog.Logger
}

func NewLLMService(provider adapter.LLMProvider, logger *zerolog.Logger) *llmSvc {
	l := logger.With().Str("component", "LLMService").Logger()
	return &llmSvc{provider: provider, log: &l}
}

func (s *llmSvc) GenerateResponse(ctx context.Context, userInput string, role Role, history []adapter.Message) (*adapter.Reply, error) {
	req := adapter.GenerateRequest{
		Prompt:       userInput,
		SystemPrompt: systemPromptFor(role),
		History:      history,
	}
	// Tool schema only for the primary persona.
	if role == RoleDelta {
		req.Tools = []adapter.ToolDeclaration{runModelTool}
	}
	return s.provider.Generate(ctx, req)
}

func (s *llmSvc) GenerateStream(ctx context.Context, userInput string, role Role, history []adapter.Message) (<-chan adapter.StreamChunk, error) {
	req := adapter.GenerateRequest{
		Prompt:       userInput,
		SystemPrompt: systemPromptFor(role),
		History:      history,
	}
	return s.provider.GenerateStream(ctx, req)
}

func (s *llmSvc) GenerateSummaryFromMessages(ctx context.Context, lines []TranscriptLine) (string, error) {
	formatted := make([]string, 0, len(lines))
	for _, l := range lines {
		formatted = append(formatted, fmt.Sprintf("%s: %s", l.Sender, l.Content))
	}
	transcript := boundTranscript(strings.Join(formatted, "\n"), summaryTokenBudget)

	prompt := "Please provide a concise scientific summary of the following conversation, " +
		"highlighting key hydrological insights and action items:\n\n" +
		transcript + "\n\nSummary:"

	reply, err := s.provider.Generate(ctx, adapter.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: summarizerSystemPrompt,
	})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// boundTranscript trims the transcript to at most budget tokens, keeping the
// most recent content. Falls back to the raw text if the encoding is
// unavailable.
func boundTranscript(text string, budget int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[len(tokens)-budget:])
}
