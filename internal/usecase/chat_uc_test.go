package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type chatFixture struct {
	provider *fakeProvider
	convs    *memConvRepo
	msgs     *memMsgRepo
	cache    *memSummaryCache
	jobs     *memJobRepo
	chat     ChatUseCase
}

func newChatFixture(t *testing.T, provider *fakeProvider) *chatFixture {
	t.Helper()
	log := testLogger()

	jobs := newMemJobRepo()
	jobUC := NewJobUseCase(jobs, &syncScheduler{}, &fakeRunner{}, log)
	tools := NewToolRunner(jobUC, log)

	convs := newMemConvRepo()
	msgs := newMemMsgRepo()
	cache := newMemSummaryCache()
	llm := NewLLMService(provider, log)
	chat := NewChatUseCase(llm, tools, convs, msgs, &memTxMgr{}, cache, 20, log)

	return &chatFixture{provider: provider, convs: convs, msgs: msgs, cache: cache, jobs: jobs, chat: chat}
}

func (f *chatFixture) seedConversation(t *testing.T, userID string) string {
	t.Helper()
	conv, err := f.chat.StartConversation(context.Background(), userID, "Bow basin runoff")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	return conv.ID
}

func TestProcessUserInputPersistsBothTurns(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{{Text: "Snowmelt dominates spring runoff."}}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")

	answer, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "What drives runoff here?", RoleDelta)
	if err != nil {
		t.Fatalf("ProcessUserInput: %v", err)
	}
	if answer != "Snowmelt dominates spring runoff." {
		t.Fatalf("unexpected answer %q", answer)
	}

	msgs, _ := f.msgs.ListAll(context.Background(), nil, convID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].Sender != model.SenderUser || msgs[0].Index != 1 {
		t.Fatalf("user turn wrong: sender=%s index=%d", msgs[0].Sender, msgs[0].Index)
	}
	if msgs[1].Sender != model.SenderAssistant || msgs[1].Index != 2 {
		t.Fatalf("assistant turn wrong: sender=%s index=%d", msgs[1].Sender, msgs[1].Index)
	}
}

func TestProcessUserInputContinuesIndexes(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{{Text: "a"}, {Text: "b"}}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")

	if _, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "first", RoleDelta); err != nil {
		t.Fatal(err)
	}
	if _, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "second", RoleDelta); err != nil {
		t.Fatal(err)
	}
	msgs, _ := f.msgs.ListAll(context.Background(), nil, convID)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Index != i+1 {
			t.Fatalf("message %d has index %d", i, m.Index)
		}
	}
}

func TestProcessUserInputToolRoundTrip(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{
		{Calls: []adapter.FunctionCall{{Name: ToolRunModel, Args: map[string]any{"model": "FUSE"}}}},
		{Text: "The FUSE run has been queued."},
	}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")

	answer, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "Run FUSE for me", RoleDelta)
	if err != nil {
		t.Fatalf("ProcessUserInput: %v", err)
	}
	if answer != "The FUSE run has been queued." {
		t.Fatalf("final answer must come from the follow-up call, got %q", answer)
	}
	if provider.callCount() != 2 {
		t.Fatalf("expected exactly 2 provider calls, got %d", provider.callCount())
	}

	follow := provider.lastRequest()
	if !strings.Contains(follow.Prompt, "Tool '"+ToolRunModel+"' Output:") {
		t.Fatalf("follow-up prompt missing tool feedback: %q", follow.Prompt)
	}
	if !strings.Contains(follow.Prompt, "Job ID:") {
		t.Fatalf("follow-up prompt missing job acknowledgement: %q", follow.Prompt)
	}

	// The tool call actually created a job.
	jobs, _ := f.jobs.FindByStatus(context.Background(), nil, model.JobStatusCompleted)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 completed job, got %d", len(jobs))
	}
	if jobs[0].Parameters["model"] != "FUSE" {
		t.Fatalf("job model = %q", jobs[0].Parameters["model"])
	}
}

func TestProcessUserInputToolRoundTripEmptyFollowUp(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{
		{Calls: []adapter.FunctionCall{{Name: ToolRunModel, Args: map[string]any{}}}},
		{Text: ""},
	}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")

	answer, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "run the default model", RoleDelta)
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Tool executed." {
		t.Fatalf("expected fallback acknowledgement, got %q", answer)
	}
}

func TestProcessUserInputOwnership(t *testing.T) {
	provider := &fakeProvider{}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "owner")

	if _, err := f.chat.ProcessUserInput(context.Background(), "intruder", convID, "hi", RoleDelta); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.chat.ProcessUserInput(context.Background(), "owner", "missing", "hi", RoleDelta); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("provider must not be called on authorization failure")
	}
}

func TestProcessUserInputPersistFailureDiscardsAnswer(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{{Text: "lost answer"}}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")
	f.msgs.saveErr = errors.New("disk on fire")

	if _, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "hi", RoleDelta); err == nil {
		t.Fatal("expected persistence error")
	}
}

func TestStatelessModeSkipsPersistence(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{{Text: "hello"}}}
	log := testLogger()
	llm := NewLLMService(provider, log)
	chat := NewChatUseCase(llm, NewToolRunner(nil, log), nil, nil, nil, nil, 20, log)

	answer, err := chat.ProcessUserInput(context.Background(), "", "", "hi", RoleDelta)
	if err != nil {
		t.Fatalf("stateless turn: %v", err)
	}
	if answer != "hello" {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestProcessUserInputStreamPersistsAccumulatedAnswer(t *testing.T) {
	provider := &fakeProvider{streams: [][]string{{"The ", "Bow ", "river."}}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")

	chunks, err := f.chat.ProcessUserInputStream(context.Background(), "u1", convID, "Tell me about the Bow", RoleDelta)
	if err != nil {
		t.Fatalf("ProcessUserInputStream: %v", err)
	}
	var got strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		got.WriteString(chunk.Text)
	}
	if got.String() != "The Bow river." {
		t.Fatalf("streamed text = %q", got.String())
	}

	msgs, _ := f.msgs.ListAll(context.Background(), nil, convID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[1].Content != "The Bow river." {
		t.Fatalf("assistant turn = %q", msgs[1].Content)
	}
	if msgs[0].Index != 1 || msgs[1].Index != 2 {
		t.Fatalf("indexes = %d,%d", msgs[0].Index, msgs[1].Index)
	}
}

func TestSummaryEmptyConversation(t *testing.T) {
	provider := &fakeProvider{}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")

	if _, err := f.chat.Summary(context.Background(), "u1", convID); !errors.Is(err, domain.ErrEmptyConversation) {
		t.Fatalf("expected ErrEmptyConversation, got %v", err)
	}
}

func TestSummaryGeneratesStoresAndCaches(t *testing.T) {
	provider := &fakeProvider{replies: []*adapter.Reply{
		{Text: "answer"},
		{Text: "A summary of snowmelt discussion."},
	}}
	f := newChatFixture(t, provider)
	convID := f.seedConversation(t, "u1")
	if _, err := f.chat.ProcessUserInput(context.Background(), "u1", convID, "snowmelt?", RoleDelta); err != nil {
		t.Fatal(err)
	}

	summary, err := f.chat.Summary(context.Background(), "u1", convID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary != "A summary of snowmelt discussion." {
		t.Fatalf("summary = %q", summary)
	}

	conv, _ := f.convs.FindByID(context.Background(), nil, convID)
	if conv.Summary != summary {
		t.Fatal("summary not stored on conversation")
	}

	// Second call is served from cache without another provider call.
	calls := provider.callCount()
	again, err := f.chat.Summary(context.Background(), "u1", convID)
	if err != nil || again != summary {
		t.Fatalf("cached summary = %q err=%v", again, err)
	}
	if provider.callCount() != calls {
		t.Fatal("cached summary must not call the provider")
	}
}
