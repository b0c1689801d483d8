package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/adapter"
	"delta-backend/internal/domain/ports/repository"
	"delta-backend/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// SummaryCache is a read-through cache for conversation summaries.
// A miss is (value="", ok=false, err=nil); errors are infrastructure
// failures and are treated as misses by the orchestrator.
type SummaryCache interface {
	Get(ctx context.Context, conversationID string) (string, bool, error)
	Set(ctx context.Context, conversationID, summary string) error
}

type ChatUseCase interface {
	StartConversation(ctx context.Context, userID, title string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error)
	// ProcessUserInput runs one full turn: generation, tool round-trip if
	// requested, then transactional persistence of both turn halves.
	ProcessUserInput(ctx context.Context, userID, conversationID, input string, role Role) (string, error)
	// ProcessUserInputStream persists the user turn up front, then streams
	// fragments; the accumulated assistant turn is persisted when the
	// stream ends cleanly.
	ProcessUserInputStream(ctx context.Context, userID, conversationID, input string, role Role) (<-chan adapter.StreamChunk, error)
	Summary(ctx context.Context, userID, conversationID string) (string, error)
}

type chatUC struct {
	llm      LLMService
	tools    *ToolRunner
	convs    repository.ConversationRepository // nil in stateless mode
	msgs     repository.MessageRepository      // nil in stateless mode
	txMgr    repository.TransactionManager     // nil in stateless mode
	cache    SummaryCache                      // optional
	window   int
	log      *zerolog.Logger
}

// NewChatUseCase wires the orchestrator. Passing nil repositories selects
// stateless mode: no ownership checks, no history, nothing persisted.
func NewChatUseCase(
	llm LLMService,
	tools *ToolRunner,
	convs repository.ConversationRepository,
	msgs repository.MessageRepository,
	txMgr repository.TransactionManager,
	cache SummaryCache,
	historyWindow int,
	logger *zerolog.Logger,
) *chatUC {
	if historyWindow <= 0 {
		historyWindow = 20
	}
	l := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{
		llm:    llm,
		tools:  tools,
		convs:  convs,
		msgs:   msgs,
		txMgr:  txMgr,
		cache:  cache,
		window: historyWindow,
		log:    &l,
	}
}

func (c *chatUC) stateless() bool { return c.convs == nil || c.msgs == nil || c.txMgr == nil }

func (c *chatUC) StartConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if c.stateless() {
		return nil, domain.ErrUnavailable
	}
	if title == "" {
		title = "New Conversation"
	}
	conv := model.NewConversation(uuid.NewString(), userID, title)
	if err := c.convs.Save(ctx, nil, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return conv, nil
}

func (c *chatUC) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	if c.stateless() {
		return nil, domain.ErrUnavailable
	}
	return c.convs.FindAllByUser(ctx, nil, userID)
}

func (c *chatUC) ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error) {
	if c.stateless() {
		return nil, domain.ErrUnavailable
	}
	if _, err := c.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return c.msgs.ListAll(ctx, nil, conversationID)
}

// authorize loads the conversation and enforces ownership.
func (c *chatUC) authorize(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := c.convs.FindByID(ctx, nil, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return conv, nil
}

func (c *chatUC) ProcessUserInput(ctx context.Context, userID, conversationID, input string, role Role) (string, error) {
	if input == "" {
		return "", domain.ErrInvalidArgument
	}

	var history []adapter.Message
	if !c.stateless() {
		if _, err := c.authorize(ctx, userID, conversationID); err != nil {
			metrics.IncChatTurn("process", false)
			return "", err
		}
		recent, err := c.msgs.ListRecent(ctx, nil, conversationID, c.window)
		if err != nil {
			metrics.IncChatTurn("process", false)
			return "", fmt.Errorf("load history: %w", err)
		}
		history = toAdapterHistory(recent)
	}

	answer, err := c.runTurn(ctx, input, role, history)
	if err != nil {
		metrics.IncChatTurn("process", false)
		return "", err
	}

	if !c.stateless() {
		if err := c.persistTurn(ctx, conversationID, input, answer); err != nil {
			// The generated answer is discarded rather than returned
			// unrecorded; retrying the request regenerates it.
			metrics.IncChatTurn("process", false)
			return "", fmt.Errorf("persist turn: %w", err)
		}
	}
	metrics.IncChatTurn("process", true)
	return answer, nil
}

// runTurn performs the generation plus at most one tool round-trip.
func (c *chatUC) runTurn(ctx context.Context, input string, role Role, history []adapter.Message) (string, error) {
	reply, err := c.llm.GenerateResponse(ctx, input, role, history)
	if err != nil {
		return "", err
	}
	if !reply.IsToolRequest() {
		return reply.Text, nil
	}

	results := c.tools.Run(ctx, reply.Calls)
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("Tool '%s' Output: %s", r.Name, r.Result))
	}
	feedback := strings.Join(lines, "\n")

	// The pending call and its outcome become part of the context for the
	// follow-up generation.
	followHistory := append(append([]adapter.Message{}, history...),
		adapter.Message{Role: model.SenderUser, Content: input},
		adapter.Message{Role: model.SenderAssistant, Content: reply.Text},
	)
	final, err := c.llm.GenerateResponse(ctx, feedback, role, followHistory)
	if err != nil {
		return "", err
	}
	if final.Text == "" {
		return "Tool executed.", nil
	}
	return final.Text, nil
}

// persistTurn writes both turn halves in one transaction with contiguous
// indexes: user at last+1, assistant at last+2.
func (c *chatUC) persistTurn(ctx context.Context, conversationID, input, answer string) error {
	return c.txMgr.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		last, err := c.msgs.MaxIndex(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		userMsg := &model.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Index:          last + 1,
			Sender:         model.SenderUser,
			Content:        input,
		}
		if err := c.msgs.Save(ctx, tx, userMsg); err != nil {
			return err
		}
		assistantMsg := &model.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Index:          last + 2,
			Sender:         model.SenderAssistant,
			Content:        answer,
		}
		return c.msgs.Save(ctx, tx, assistantMsg)
	})
}

func (c *chatUC) ProcessUserInputStream(ctx context.Context, userID, conversationID, input string, role Role) (<-chan adapter.StreamChunk, error) {
	if input == "" {
		return nil, domain.ErrInvalidArgument
	}

	var history []adapter.Message
	var userIndex int
	if !c.stateless() {
		if _, err := c.authorize(ctx, userID, conversationID); err != nil {
			return nil, err
		}
		recent, err := c.msgs.ListRecent(ctx, nil, conversationID, c.window)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history = toAdapterHistory(recent)

		// The user turn is committed before any fragment is emitted; if
		// this fails the stream never starts.
		err = c.txMgr.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			last, err := c.msgs.MaxIndex(ctx, tx, conversationID)
			if err != nil {
				return err
			}
			userIndex = last + 1
			return c.msgs.Save(ctx, tx, &model.Message{
				ID:             uuid.NewString(),
				ConversationID: conversationID,
				Index:          userIndex,
				Sender:         model.SenderUser,
				Content:        input,
			})
		})
		if err != nil {
			return nil, fmt.Errorf("persist user turn: %w", err)
		}
	}

	src, err := c.llm.GenerateStream(ctx, input, role, history)
	if err != nil {
		return nil, err
	}

	out := make(chan adapter.StreamChunk)
	go func() {
		defer close(out)
		var full strings.Builder
		failed := false
		for chunk := range src {
			if chunk.Err != nil {
				failed = true
			} else {
				full.WriteString(chunk.Text)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if failed || c.stateless() {
			metrics.IncChatTurn("stream", !failed)
			return
		}
		if err := c.msgs.Save(context.WithoutCancel(ctx), nil, &model.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Index:          userIndex + 1,
			Sender:         model.SenderAssistant,
			Content:        full.String(),
		}); err != nil {
			c.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to persist streamed assistant turn")
			metrics.IncChatTurn("stream", false)
			return
		}
		metrics.IncChatTurn("stream", true)
	}()
	return out, nil
}

// Summary returns the cached summary when present, otherwise generates one
// from the full transcript and stores it on the conversation.
func (c *chatUC) Summary(ctx context.Context, userID, conversationID string) (string, error) {
	if c.stateless() {
		return "", domain.ErrUnavailable
	}
	if _, err := c.authorize(ctx, userID, conversationID); err != nil {
		return "", err
	}

	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, conversationID); err == nil && ok {
			return cached, nil
		} else if err != nil {
			c.log.Warn().Err(err).Msg("summary cache read failed")
		}
	}

	msgs, err := c.msgs.ListAll(ctx, nil, conversationID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", domain.ErrEmptyConversation
	}

	lines := make([]TranscriptLine, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, TranscriptLine{Sender: m.Sender, Content: m.Content})
	}
	summary, err := c.llm.GenerateSummaryFromMessages(ctx, lines)
	if err != nil {
		return "", err
	}

	if err := c.convs.UpdateSummary(ctx, nil, conversationID, summary); err != nil {
		return "", fmt.Errorf("store summary: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, conversationID, summary); err != nil {
			c.log.Warn().Err(err).Msg("summary cache write failed")
		}
	}
	return summary, nil
}

func toAdapterHistory(msgs []*model.Message) []adapter.Message {
	out := make([]adapter.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, adapter.Message{Role: m.Sender, Content: m.Content})
	}
	return out
}
