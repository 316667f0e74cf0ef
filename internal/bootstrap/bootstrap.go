package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tenantic/assistant-core/internal/config"
	"github.com/tenantic/assistant-core/internal/core/ports"
	"github.com/tenantic/assistant-core/internal/core/usecase"
	"github.com/tenantic/assistant-core/internal/infrastructure/chunking"
	"github.com/tenantic/assistant-core/internal/infrastructure/extractor"
	"github.com/tenantic/assistant-core/internal/infrastructure/llm/ollama"
	"github.com/tenantic/assistant-core/internal/infrastructure/queue/nats"
	"github.com/tenantic/assistant-core/internal/infrastructure/repository/postgres"
	"github.com/tenantic/assistant-core/internal/infrastructure/resilience"
	"github.com/tenantic/assistant-core/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue         ports.MessageQueue
	Documents     ports.DocumentStore
	Agents        ports.AgentStore
	IngestUC      ports.DocumentIngestor
	ProcessUC     ports.DocumentProcessor
	RetrieveUC    ports.ContextRetriever
	ChatUC        ports.ChatService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	fragments := postgres.NewFragmentRepository(db)
	agents := postgres.NewAgentRepository(db)
	decisions := postgres.NewDecisionLogRepository(db)
	conversations := postgres.NewConversationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.Logger = logger
	executor := resilience.NewExecutor(resilienceCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Temperature:        cfg.CompletionTemperature,
		MaxTokens:          cfg.CompletionMaxTokens,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	completer := ollama.NewCompleter(ollamaClient)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.New(storage)

	var ranker usecase.FragmentRanker
	if cfg.RetrievalStrategy == "linear" {
		ranker = usecase.NewLinearRanker(fragments)
	} else {
		ranker = usecase.NewIndexRanker(fragments)
	}

	ingestUC := usecase.NewIngestDocumentUseCase(documents, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(documents, fragments, textExtractor, chunker, embedder, logger)
	retrieveUC := usecase.NewRetrieveContextUseCase(embedder, documents, ranker)
	chatUC := usecase.NewChatUseCase(agents, retrieveUC, completer, conversations, decisions, logger, usecase.ChatConfig{
		RAGTopK:          cfg.RAGTopK,
		HistoryMessages:  cfg.ChatHistoryMessages,
		CostPerKiloToken: cfg.CostPerKiloToken,
	})

	return &App{
		Config: cfg,

		Queue:      queue,
		Documents:  documents,
		Agents:     agents,
		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		RetrieveUC: retrieveUC,
		ChatUC:     chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
