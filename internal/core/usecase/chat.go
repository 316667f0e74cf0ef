package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenantic/assistant-core/internal/core/domain"
	"github.com/tenantic/assistant-core/internal/core/ports"
)

const actionChatTurn = "chat_turn"

type ChatConfig struct {
	RAGTopK          int
	HistoryMessages  int
	CostPerKiloToken float64
}

// ChatUseCase runs one chat turn through the governance chain: cost/kill
// authorization, topic contract, retrieval, mode gate, completion, spend
// recording and decision logging.
type ChatUseCase struct {
	agents        ports.AgentStore
	retriever     ports.ContextRetriever
	completer     ports.CompletionProvider
	conversations ports.ConversationStore
	decisions     ports.DecisionLog
	logger        *slog.Logger

	ragTopK          int
	historyMessages  int
	costPerKiloToken float64
}

func NewChatUseCase(
	agents ports.AgentStore,
	retriever ports.ContextRetriever,
	completer ports.CompletionProvider,
	conversations ports.ConversationStore,
	decisions ports.DecisionLog,
	logger *slog.Logger,
	cfg ChatConfig,
) *ChatUseCase {
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = 5
	}
	if cfg.HistoryMessages <= 0 {
		cfg.HistoryMessages = 10
	}
	if cfg.CostPerKiloToken <= 0 {
		cfg.CostPerKiloToken = 0.01
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		agents:           agents,
		retriever:        retriever,
		completer:        completer,
		conversations:    conversations,
		decisions:        decisions,
		logger:           logger,
		ragTopK:          cfg.RAGTopK,
		historyMessages:  cfg.HistoryMessages,
		costPerKiloToken: cfg.CostPerKiloToken,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("message is required"))
	}
	if strings.TrimSpace(req.AgentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("agent_id is required"))
	}

	started := time.Now()
	agent, err := uc.agents.GetByID(ctx, req.TenantID, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	if verdict := Authorize(agent); !verdict.Allowed {
		return uc.blockedResult(ctx, req, agent, conversationID, verdict, started), nil
	}
	if verdict := CheckTopicContract(agent, req.Message); !verdict.Allowed {
		return uc.blockedResult(ctx, req, agent, conversationID, verdict, started), nil
	}

	evidence := []domain.Evidence{}
	contextText := ""
	if agent.EnableRAG {
		retrieval, retErr := uc.retriever.Retrieve(ctx, req.Message, agent, uc.ragTopK)
		if retErr != nil {
			// Retrieval failure degrades to empty context, never fails the turn.
			uc.logger.Warn("retrieval_degraded", "agent_id", agent.ID, "error", retErr)
		} else {
			evidence = retrieval.Evidence
			contextText = retrieval.Context
		}
	}

	if verdict := CheckMode(agent.Mode, evidence); !verdict.Allowed {
		return uc.blockedResult(ctx, req, agent, conversationID, verdict, started), nil
	}

	conv, err := uc.conversations.EnsureConversation(ctx, req.TenantID, agent.ID, req.UserID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	// History load and turn append key on the conversation id alone, so the
	// ownership check happens here, once, before either.
	if conv.TenantID != req.TenantID || conv.AgentID != agent.ID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat",
			fmt.Errorf("conversation %s does not belong to this tenant and agent", conversationID))
	}
	history, err := uc.conversations.ListRecentMessages(ctx, conversationID, uc.historyMessages)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	completion, err := uc.completer.Complete(ctx, buildChatMessages(agent, contextText, history, req.Message))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCompletion, "complete chat turn", err)
	}

	cost := uc.estimateCost(completion.TokensUsed)
	if err := uc.agents.AddCost(ctx, agent.ID, cost); err != nil {
		return nil, fmt.Errorf("record cost: %w", err)
	}

	uc.appendTurn(ctx, conversationID, req.Message, completion.Text)

	latency := time.Since(started).Milliseconds()
	uc.recordDecision(ctx, &domain.DecisionLogEntry{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		UserID:        req.UserID,
		AgentID:       agent.ID,
		Action:        actionChatTurn,
		Decision:      domain.DecisionAllowed,
		Reason:        "completed",
		InputPreview:  domain.Preview(req.Message),
		OutputPreview: domain.Preview(completion.Text),
		Metadata: map[string]string{
			domain.MetaTokensUsed:    strconv.Itoa(completion.TokensUsed),
			domain.MetaEvidenceCount: strconv.Itoa(len(evidence)),
			domain.MetaTopScore:      formatTopScore(evidence),
			domain.MetaLatencyMS:     strconv.FormatInt(latency, 10),
			domain.MetaAgentMode:     string(agent.Mode),
			domain.MetaCostRecorded:  strconv.FormatFloat(cost, 'f', 6, 64),
		},
		CreatedAt: time.Now().UTC(),
	})

	return &domain.ChatResult{
		Response:       completion.Text,
		ConversationID: conversationID,
		TokensUsed:     completion.TokensUsed,
		Cost:           cost,
		LatencyMS:      latency,
		Evidence:       evidence,
	}, nil
}

func (uc *ChatUseCase) blockedResult(
	ctx context.Context,
	req domain.ChatRequest,
	agent *domain.Agent,
	conversationID string,
	verdict Verdict,
	started time.Time,
) *domain.ChatResult {
	latency := time.Since(started).Milliseconds()
	metadata := map[string]string{
		domain.MetaAgentMode: string(agent.Mode),
		domain.MetaLatencyMS: strconv.FormatInt(latency, 10),
	}
	if verdict.MatchedTopic != "" {
		metadata[domain.MetaMatchedTopic] = verdict.MatchedTopic
	}
	uc.recordDecision(ctx, &domain.DecisionLogEntry{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		AgentID:      agent.ID,
		Action:       actionChatTurn,
		Decision:     domain.DecisionBlocked,
		Reason:       verdict.Reason,
		InputPreview: domain.Preview(req.Message),
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	})

	return &domain.ChatResult{
		ConversationID: conversationID,
		LatencyMS:      latency,
		Evidence:       []domain.Evidence{},
		Blocked:        true,
		BlockReason:    verdict.Reason,
	}
}

// recordDecision is best-effort. A failed audit write is reported to the log
// side channel and never surfaces to the caller.
func (uc *ChatUseCase) recordDecision(ctx context.Context, entry *domain.DecisionLogEntry) {
	if err := uc.decisions.Record(ctx, entry); err != nil {
		uc.logger.Error("decision_log_write_failed",
			"agent_id", entry.AgentID,
			"decision", string(entry.Decision),
			"error", err,
		)
	}
}

func (uc *ChatUseCase) appendTurn(ctx context.Context, conversationID, userMessage, assistantMessage string) {
	now := time.Now().UTC()
	for _, msg := range []domain.ConversationMessage{
		{ID: uuid.NewString(), ConversationID: conversationID, Role: "user", Content: userMessage, CreatedAt: now},
		{ID: uuid.NewString(), ConversationID: conversationID, Role: "assistant", Content: assistantMessage, CreatedAt: now},
	} {
		if err := uc.conversations.AppendMessage(ctx, msg); err != nil {
			uc.logger.Warn("conversation_append_failed", "conversation_id", conversationID, "role", msg.Role, "error", err)
		}
	}
}

// estimateCost is monotonic in tokens consumed.
func (uc *ChatUseCase) estimateCost(tokens int) float64 {
	if tokens < 0 {
		tokens = 0
	}
	return float64(tokens) / 1000.0 * uc.costPerKiloToken
}

func buildChatMessages(agent *domain.Agent, contextText string, history []domain.ConversationMessage, userMessage string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)

	system := systemPrompt(agent.Mode)
	if contextText != "" {
		system += "\n\nKnowledge context:\n" + contextText
	}
	messages = append(messages, domain.ChatMessage{Role: "system", Content: system})

	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: "user", Content: userMessage})
	return messages
}

func systemPrompt(mode domain.AgentMode) string {
	switch mode {
	case domain.ModeInternal:
		return "You are an assistant that answers strictly from the provided knowledge context. If the context does not contain the answer, say you do not know."
	case domain.ModeHybrid:
		return "You are an assistant that prefers the provided knowledge context but may supplement it with general knowledge when the context is incomplete."
	default:
		return "You are a helpful assistant."
	}
}

func formatTopScore(evidence []domain.Evidence) string {
	if len(evidence) == 0 {
		return "0"
	}
	best := evidence[0].Score
	for _, ev := range evidence[1:] {
		if ev.Score > best {
			best = ev.Score
		}
	}
	return strconv.FormatFloat(best, 'f', 4, 64)
}
