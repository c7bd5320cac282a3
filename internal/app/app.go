// Package app wires configuration into the running components shared by
// the daemon and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/document-extractor/internal/auth"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/documents"
	"github.com/joseph-ayodele/document-extractor/internal/export"
	"github.com/joseph-ayodele/document-extractor/internal/feedback"
	"github.com/joseph-ayodele/document-extractor/internal/inference"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
	"github.com/joseph-ayodele/document-extractor/internal/storage"
)

// App holds every long-lived component built from a Config.
type App struct {
	Cfg       *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Redis     *redis.Client // nil unless REDIS_ADDR is set
	Blobs     storage.BlobStore
	Tokens    auth.Provider
	Model     *inference.Client
	Feedback  *feedback.Service
	Retriever *feedback.Retriever
	Prompts   *inference.PromptBuilder
	Processor *pipeline.Processor
	Documents *documents.Service
	Export    *export.Service

	closers []func()
}

// New opens the database, migrates it and builds the pipeline. On error
// everything opened so far is closed.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Cfg: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DB, err = repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() { a.DB.Close(logger) })
	if err = a.DB.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if a.Blobs, err = storage.New(ctx, cfg.Storage, logger); err != nil {
		return nil, fmt.Errorf("open blob storage: %w", err)
	}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		rdb := a.Redis
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}
	a.Tokens = a.tokenProvider()

	docs := repository.NewDocumentRepository(a.DB, logger)
	records := repository.NewRecordRepository(a.DB, logger)
	store := repository.NewFeedbackRepository(a.DB, logger)

	var (
		similar feedback.SimilaritySearcher
		indexer feedback.Indexer
	)
	if cfg.Feedback.Enabled() {
		embedder := feedback.NewOpenAIEmbedder(cfg.Feedback.EmbeddingURL, cfg.Feedback.EmbeddingAPIKey, cfg.Feedback.EmbeddingModel, logger)
		idx, ierr := feedback.NewQdrantIndex(feedback.QdrantConfig{
			Host:       cfg.Feedback.QdrantHost,
			Port:       cfg.Feedback.QdrantPort,
			APIKey:     cfg.Feedback.QdrantAPIKey,
			UseTLS:     cfg.Feedback.QdrantUseTLS,
			Collection: cfg.Feedback.Collection,
			Dimensions: cfg.Feedback.EmbeddingDims,
		}, embedder, logger)
		if ierr != nil {
			// retrieval falls back to the SQL index
			logger.Warn("feedback similarity index unavailable", "error", ierr)
		} else {
			similar, indexer = idx, idx
			a.closers = append(a.closers, func() { _ = idx.Close() })
		}
	}

	a.Model = inference.NewClient(inference.Config{
		DeploymentURL: cfg.AICore.DeploymentURL,
		ResourceGroup: cfg.AICore.ResourceGroup,
		Timeout:       cfg.AICore.Timeout,
		MaxTokens:     cfg.AICore.MaxTokens,
	}, logger)
	a.Feedback = feedback.NewService(store, indexer, logger)
	a.Retriever = feedback.NewRetriever(store, similar, logger)
	a.Prompts = inference.NewPromptBuilder(a.Retriever, store, logger)
	a.Processor = pipeline.NewProcessor(logger, pipeline.Config{MinConfidence: cfg.AICore.MinConfidence}, docs, records, a.Blobs, a.Tokens, a.Model, a.Prompts)
	a.Documents = documents.NewService(docs, records, a.Blobs, logger)
	a.Export = export.NewService(a.Documents, logger)
	return a, nil
}

func (a *App) tokenProvider() auth.Provider {
	cc := auth.NewClientCredentials(auth.Config{
		AuthURL:      a.Cfg.AICore.AuthURL,
		ClientID:     a.Cfg.AICore.ClientID,
		ClientSecret: a.Cfg.AICore.ClientSecret,
	}, nil, a.Logger)
	if !a.Cfg.AICore.CacheTokens {
		return cc
	}
	var opts []auth.CacheOption
	if a.Redis != nil {
		opts = append(opts, auth.WithStore(auth.NewRedisStore(a.Redis, "")))
	}
	return auth.NewCached(cc, a.Logger, opts...)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
