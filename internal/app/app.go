package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/api/handlers"
	"github.com/markdave123-py/ragchat/internal/config"
	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/core/chat"
	db "github.com/markdave123-py/ragchat/internal/core/database"
	"github.com/markdave123-py/ragchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragchat/internal/core/llm"
	objectclient "github.com/markdave123-py/ragchat/internal/core/object-client"
	"github.com/markdave123-py/ragchat/internal/services"
)

type App struct {
	Store        core.VectorStore
	ObjectClient core.ObjectClient
	DocProcessor ingestion_engine.Ingestor
	Sessions     *services.SessionService
	Server       *Server

	closers []io.Closer
}

// NewApp wires every component from cfg. ctx bounds the background ingestion workers.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{}

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	store, err := db.NewVectorStore(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the vector store, %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store)
	log.Info("Vector store initialized and ready.")

	if cfg.ObjectStorageEnabled() {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ObjectClient = s3Client
		log.Info("Object client initialized and ready.")
	}

	embedder, err := a.newEmbedder(appCtx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	llmProvider, err := a.newLLM(appCtx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}

	useReadability := false
	documentExtractor := ingestion_engine.NewDocconvExtractor(useReadability)

	ingCfg := &ingestion_engine.IngestConfig{
		ChunkCount: cfg.CorpusChunks,
		BatchSize:  64,
		EmbedDim:   cfg.EmbedDim,
	}
	docIngestor := ingestion_engine.NewDocumentIngestor(store, embedder, documentExtractor, a.ObjectClient, ingCfg)
	docIngestor.Start(ctx, cfg.Workers)
	a.DocProcessor = docIngestor

	if err := a.loadCorpus(appCtx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	defaultModel := cfg.ResolveModel("")
	orch := chat.NewOrchestrator(llmProvider, embedder, store, prompts, chat.Options{
		Model:       defaultModel,
		TopK:        cfg.TopK,
		Retrieval:   cfg.Retrieval,
		Mode:        chat.Mode(cfg.ChatMode),
		KeepPartial: cfg.KeepPartial,
	})
	a.Sessions = services.NewSessionService(orch, prompts, cfg.MaxHistory, cfg.ResolveModel)

	docService := services.NewDocumentService(
		documentExtractor,
		ingestion_engine.NewURLFetcher(documentExtractor, 30*time.Second),
		docIngestor,
		a.ObjectClient,
	)
	qa := chat.NewDocumentQA(llmProvider, prompts, defaultModel)

	a.Server = NewServer(cfg,
		handlers.NewDocumentHandler(docService, qa, cfg.ResolveModel),
		handlers.NewChatHandler(a.Sessions),
	)
	return a, nil
}

func (a *App) newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "openai":
		return llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel), nil
	case "gemini":
		e, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e)
		return e, nil
	}
	return nil, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
}

func (a *App) newLLM(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.LLMProvider {
	case "openai":
		return llm.NewOpenAILLM(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ResolveModel("")), nil
	case "gemini":
		g, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.ResolveModel(""))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g)
		return g, nil
	}
	return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
}

// loadCorpus fills an empty collection from S3 when a prefix is configured, else from CORPUS_DIR.
func (a *App) loadCorpus(ctx context.Context, cfg *config.Config) error {
	var src ingestion_engine.CorpusSource = ingestion_engine.DirSource{Dir: cfg.CorpusDir}
	if cfg.CorpusS3Prefix != "" && a.ObjectClient != nil {
		src = ingestion_engine.S3Source{Client: a.ObjectClient, Prefix: cfg.CorpusS3Prefix}
	}

	_, err := a.DocProcessor.LoadCorpus(ctx, src)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warnf("corpus %s does not exist, starting with whatever the collection holds", src)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warnf("close: %v", err)
		}
	}
	a.closers = nil
}
