package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

type agentStoreFake struct {
	agent     *domain.Agent
	getErr    error
	costAdded []float64
	costErr   error
}

func (f *agentStoreFake) GetByID(context.Context, string, string) (*domain.Agent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyAgent := *f.agent
	return &copyAgent, nil
}

func (f *agentStoreFake) AddCost(_ context.Context, _ string, amount float64) error {
	if f.costErr != nil {
		return f.costErr
	}
	f.costAdded = append(f.costAdded, amount)
	return nil
}

type retrieverFake struct {
	result *domain.RetrievalResult
	err    error
	calls  int
}

func (f *retrieverFake) Retrieve(context.Context, string, *domain.Agent, int) (*domain.RetrievalResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &domain.RetrievalResult{Evidence: []domain.Evidence{}}, nil
	}
	return f.result, nil
}

type completerFake struct {
	completion *domain.Completion
	err        error
	calls      int
}

func (f *completerFake) Complete(context.Context, []domain.ChatMessage) (*domain.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

type convStoreFake struct {
	messages []domain.ConversationMessage
	appended []domain.ConversationMessage

	// existing, when set, is returned as-is so tests can hand back a
	// conversation owned by someone else.
	existing *domain.Conversation
}

func (f *convStoreFake) EnsureConversation(_ context.Context, tenantID, agentID, userID, conversationID string) (*domain.Conversation, error) {
	if f.existing != nil {
		return f.existing, nil
	}
	return &domain.Conversation{ID: conversationID, TenantID: tenantID, AgentID: agentID, UserID: userID}, nil
}

func (f *convStoreFake) AppendMessage(_ context.Context, message domain.ConversationMessage) error {
	f.appended = append(f.appended, message)
	return nil
}

func (f *convStoreFake) ListRecentMessages(context.Context, string, int) ([]domain.ConversationMessage, error) {
	return f.messages, nil
}

type decisionLogFake struct {
	entries []*domain.DecisionLogEntry
	err     error
}

func (f *decisionLogFake) Record(_ context.Context, entry *domain.DecisionLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func freeAgent() *domain.Agent {
	return &domain.Agent{
		ID:             "agent-1",
		TenantID:       "tenant-1",
		Mode:           domain.ModeFree,
		CostLimitDaily: 10,
	}
}

func newChatFixture(agent *domain.Agent) (*ChatUseCase, *agentStoreFake, *retrieverFake, *completerFake, *convStoreFake, *decisionLogFake) {
	agents := &agentStoreFake{agent: agent}
	retriever := &retrieverFake{}
	completer := &completerFake{completion: &domain.Completion{Text: "answer", TokensUsed: 500}}
	conversations := &convStoreFake{}
	decisions := &decisionLogFake{}
	uc := NewChatUseCase(agents, retriever, completer, conversations, decisions, nil, ChatConfig{})
	return uc, agents, retriever, completer, conversations, decisions
}

func chatRequest(message string) domain.ChatRequest {
	return domain.ChatRequest{
		TenantID: "tenant-1",
		UserID:   "user-1",
		AgentID:  "agent-1",
		Message:  message,
	}
}

func TestChatKillSwitchBlocksBeforeAnyCall(t *testing.T) {
	agent := freeAgent()
	agent.KillSwitch = true
	agent.EnableRAG = true
	uc, _, retriever, completer, _, decisions := newChatFixture(agent)

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Blocked || result.BlockReason != ReasonKillSwitch {
		t.Fatalf("expected kill switch block, got %+v", result)
	}
	if retriever.calls != 0 || completer.calls != 0 {
		t.Fatalf("expected no provider calls, retriever=%d completer=%d", retriever.calls, completer.calls)
	}
	if len(decisions.entries) != 1 || decisions.entries[0].Decision != domain.DecisionBlocked {
		t.Fatalf("expected one blocked decision entry, got %+v", decisions.entries)
	}
}

func TestChatCostAtLimitBlocksBeforeCompletion(t *testing.T) {
	agent := freeAgent()
	agent.CostLimitDaily = 5
	agent.CostUsedToday = 5
	uc, _, _, completer, _, _ := newChatFixture(agent)

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Blocked || result.BlockReason != ReasonCostLimit {
		t.Fatalf("expected cost limit block, got %+v", result)
	}
	if completer.calls != 0 {
		t.Fatal("completion provider must not be called once the ceiling is reached")
	}
}

func TestChatForbiddenTopicBlocks(t *testing.T) {
	agent := freeAgent()
	agent.AllowedTopics = []string{"salary"}
	agent.ForbiddenTopics = []string{"salary"}
	uc, _, _, completer, _, decisions := newChatFixture(agent)

	result, err := uc.Chat(context.Background(), chatRequest("what is my salary"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Blocked {
		t.Fatal("expected block when forbidden and allowed both match")
	}
	if completer.calls != 0 {
		t.Fatal("completion provider must not be called for a blocked turn")
	}
	if decisions.entries[0].Metadata[domain.MetaMatchedTopic] != "salary" {
		t.Fatalf("expected matched topic in metadata, got %+v", decisions.entries[0].Metadata)
	}
}

func TestChatFreeModeWithoutRAGAnswers(t *testing.T) {
	agent := freeAgent()
	uc, agents, retriever, completer, conversations, decisions := newChatFixture(agent)

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Blocked {
		t.Fatalf("unexpected block: %s", result.BlockReason)
	}
	if result.Response != "answer" {
		t.Fatalf("response = %q", result.Response)
	}
	if retriever.calls != 0 {
		t.Fatal("retrieval must be skipped when RAG is disabled")
	}
	if completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", completer.calls)
	}
	if len(agents.costAdded) != 1 || agents.costAdded[0] != 0.005 {
		t.Fatalf("expected cost 0.005 for 500 tokens at 0.01/1k, got %v", agents.costAdded)
	}
	if result.Cost != 0.005 {
		t.Fatalf("result cost = %v, want the recorded 0.005", result.Cost)
	}
	if len(conversations.appended) != 2 {
		t.Fatalf("expected user+assistant messages appended, got %d", len(conversations.appended))
	}
	if len(decisions.entries) != 1 || decisions.entries[0].Decision != domain.DecisionAllowed {
		t.Fatalf("expected one allowed decision, got %+v", decisions.entries)
	}
}

func TestChatInternalModeLowConfidenceBlocks(t *testing.T) {
	agent := freeAgent()
	agent.Mode = domain.ModeInternal
	agent.EnableRAG = true
	uc, _, retriever, completer, _, _ := newChatFixture(agent)
	retriever.result = &domain.RetrievalResult{
		Context:  "ctx",
		Evidence: []domain.Evidence{{Score: 0.2}},
	}

	result, err := uc.Chat(context.Background(), chatRequest("question"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Blocked || result.BlockReason != ReasonLowConfidence {
		t.Fatalf("expected low confidence block, got %+v", result)
	}
	if completer.calls != 0 {
		t.Fatal("completion provider must not run for an under-floor INTERNAL turn")
	}
}

func TestChatInternalModeConfidentEvidenceAnswers(t *testing.T) {
	agent := freeAgent()
	agent.Mode = domain.ModeInternal
	agent.EnableRAG = true
	uc, _, retriever, _, _, decisions := newChatFixture(agent)
	retriever.result = &domain.RetrievalResult{
		Context:  "ctx",
		Evidence: []domain.Evidence{{Score: 0.6}},
	}

	result, err := uc.Chat(context.Background(), chatRequest("question"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Blocked {
		t.Fatalf("unexpected block: %s", result.BlockReason)
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("expected evidence returned, got %d", len(result.Evidence))
	}
	if decisions.entries[0].Metadata[domain.MetaTopScore] != "0.6000" {
		t.Fatalf("expected top score in metadata, got %+v", decisions.entries[0].Metadata)
	}
}

func TestChatRetrievalFailureDegradesForNonInternal(t *testing.T) {
	agent := freeAgent()
	agent.EnableRAG = true
	uc, _, retriever, completer, _, _ := newChatFixture(agent)
	retriever.err = errors.New("index unavailable")

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Blocked {
		t.Fatalf("FREE mode must answer without context, got block: %s", result.BlockReason)
	}
	if completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", completer.calls)
	}
}

func TestChatRetrievalFailureBlocksInternalMode(t *testing.T) {
	agent := freeAgent()
	agent.Mode = domain.ModeInternal
	agent.EnableRAG = true
	uc, _, retriever, completer, _, _ := newChatFixture(agent)
	retriever.err = errors.New("index unavailable")

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Blocked || result.BlockReason != ReasonNoEvidence {
		t.Fatalf("INTERNAL mode with degraded retrieval must block with no evidence, got %+v", result)
	}
	if completer.calls != 0 {
		t.Fatal("completion provider must not run")
	}
}

func TestChatDecisionLogFailureDoesNotFailTurn(t *testing.T) {
	agent := freeAgent()
	uc, _, _, _, _, decisions := newChatFixture(agent)
	decisions.err = errors.New("audit store down")

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Blocked || result.Response != "answer" {
		t.Fatalf("expected successful turn despite audit failure, got %+v", result)
	}
}

func TestChatEmptyMessageIsInvalidInput(t *testing.T) {
	uc, _, _, _, _, _ := newChatFixture(freeAgent())

	_, err := uc.Chat(context.Background(), chatRequest("   "))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestChatRejectsConversationOwnedByAnotherTenant(t *testing.T) {
	uc, _, _, completer, conversations, _ := newChatFixture(freeAgent())
	conversations.existing = &domain.Conversation{
		ID:       "conv-1",
		TenantID: "tenant-other",
		AgentID:  "agent-1",
		UserID:   "user-other",
	}

	req := chatRequest("hello")
	req.ConversationID = "conv-1"
	_, err := uc.Chat(context.Background(), req)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error for foreign conversation, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("expected no completion call, got %d", completer.calls)
	}
	if len(conversations.appended) != 0 {
		t.Fatalf("expected nothing appended to the foreign thread, got %+v", conversations.appended)
	}
}

func TestChatRejectsConversationOwnedByAnotherAgent(t *testing.T) {
	uc, _, _, completer, conversations, _ := newChatFixture(freeAgent())
	conversations.existing = &domain.Conversation{
		ID:       "conv-1",
		TenantID: "tenant-1",
		AgentID:  "agent-other",
		UserID:   "user-1",
	}

	req := chatRequest("hello")
	req.ConversationID = "conv-1"
	_, err := uc.Chat(context.Background(), req)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error for foreign conversation, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("expected no completion call, got %d", completer.calls)
	}
}

func TestChatGeneratesConversationIDWhenMissing(t *testing.T) {
	uc, _, _, _, _, _ := newChatFixture(freeAgent())

	result, err := uc.Chat(context.Background(), chatRequest("hello"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.ConversationID == "" {
		t.Fatal("expected a generated conversation id")
	}
}
