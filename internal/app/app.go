package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/handlers"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/services/chunker"
	"github.com/ternarybob/docqa/internal/services/embeddings"
	"github.com/ternarybob/docqa/internal/services/generation"
	"github.com/ternarybob/docqa/internal/services/index"
	"github.com/ternarybob/docqa/internal/services/llm"
	"github.com/ternarybob/docqa/internal/services/maintenance"
	"github.com/ternarybob/docqa/internal/services/pdf"
	"github.com/ternarybob/docqa/internal/services/rag"
	"github.com/ternarybob/docqa/internal/services/rerank"
	"github.com/ternarybob/docqa/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// LLM services; ChatLLM and EmbedLLM are the same instance when one
	// provider serves both roles
	ChatLLM  interfaces.LLMService
	EmbedLLM interfaces.LLMService

	// Pipeline
	IndexAdapter interfaces.IndexAdapter
	RAGService   *rag.Service

	// Background maintenance
	MaintenanceService *maintenance.Service

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	RAGHandler   *handlers.RAGHandler
	AskWSHandler *handlers.AskWebSocketHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("collection", cfg.Index.Collection).
		Str("chat_provider", string(app.ChatLLM.GetProvider())).
		Str("embedding_model", embeddings.ModelNameFor(cfg)).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the badger passage store
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the pipeline bottom-up
func (a *App) initServices(ctx context.Context) error {
	var err error

	a.ChatLLM, a.EmbedLLM, err = llm.NewServices(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}

	embedder := embeddings.NewService(
		a.EmbedLLM,
		embeddings.ModelNameFor(a.Config),
		a.embedDimension(),
		a.Logger,
	)

	// The adapter owns the store from here on; Close goes through it
	a.IndexAdapter = index.NewAdapter(a.StorageManager, embedder, a.Config.Index.NResults, a.Logger)

	splitter, err := chunker.NewSplitter(a.Config.Chunking, a.Logger)
	if err != nil {
		return err
	}

	rerankTimeout, err := common.ParseDuration(a.Config.Rerank.Timeout)
	if err != nil {
		return fmt.Errorf("invalid rerank timeout: %w", err)
	}
	crossEncoder := rerank.NewClient(a.Config.Rerank.URL,
		rerank.WithModel(a.Config.Rerank.Model),
		rerank.WithTimeout(rerankTimeout),
		rerank.WithLogger(a.Logger),
	)

	a.RAGService = rag.NewService(
		pdf.NewExtractor(a.Logger),
		splitter,
		a.IndexAdapter,
		rerank.NewReranker(crossEncoder, a.Config.Rerank.TopK, a.Logger),
		generation.NewGenerator(a.ChatLLM, a.Logger),
		a.Config.Index.Collection,
		a.Config.Index.NResults,
		a.Logger,
	)

	a.MaintenanceService = maintenance.NewService(a.StorageManager, a.Config.Maintenance, a.Logger)
	if err := a.MaintenanceService.Start(); err != nil {
		return err
	}

	return nil
}

func (a *App) embedDimension() int {
	if interfaces.LLMProvider(a.Config.EmbedProvider()) == interfaces.LLMProviderGemini {
		return a.Config.Gemini.EmbedDimension
	}
	return 0
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.RAGService, a.ChatLLM, a.Logger)
	a.RAGHandler = handlers.NewRAGHandler(a.RAGService, a.Config.Server.MaxUploadSize, a.Logger)
	a.AskWSHandler = handlers.NewAskWebSocketHandler(a.RAGService, a.Logger)
}

// Close stops background work, releases providers and closes the store
func (a *App) Close() error {
	if a.MaintenanceService != nil {
		a.MaintenanceService.Stop()
	}

	if a.ChatLLM != nil {
		if err := a.ChatLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close chat LLM service")
		}
	}
	if a.EmbedLLM != nil && a.EmbedLLM != a.ChatLLM {
		if err := a.EmbedLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close embedding LLM service")
		}
	}

	if a.IndexAdapter != nil {
		if err := a.IndexAdapter.Close(); err != nil {
			return fmt.Errorf("failed to close index: %w", err)
		}
		a.Logger.Info().Msg("Index closed")
		return nil
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
