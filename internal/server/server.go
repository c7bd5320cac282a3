// Package server exposes documents and feedback over HTTP with gin.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/documents"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
	"github.com/joseph-ayodele/document-extractor/internal/feedback"
)

type DocumentService interface {
	Upload(ctx context.Context, up documents.Upload) (*entity.Document, error)
	Detail(ctx context.Context, id uuid.UUID) (*entity.DocumentDetail, error)
	List(ctx context.Context, limit int) ([]entity.Document, error)
}

// Processor runs and resets pipeline runs; *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	Reset(ctx context.Context, id uuid.UUID) (*entity.Document, error)
}

type Exporter interface {
	DocumentsXLSX(ctx context.Context, limit int) ([]byte, error)
}

type FeedbackService interface {
	Submit(ctx context.Context, sub feedback.Submission) (*entity.FeedbackEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.FeedbackEntry, error)
	Index(ctx context.Context) ([]entity.FeedbackSummary, error)
	InitIndex(ctx context.Context) (int, error)
}

// HealthChecker is pinged by /health; *repository.DB satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type Deps struct {
	Documents      DocumentService
	Processor      Processor
	Queue          async.Queue
	Export         Exporter
	Feedback       FeedbackService
	Health         HealthChecker
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	deps    Deps
	logger  *slog.Logger
	started time.Time
}

func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = constants.MaxUploadBytes
	}
	return &Handlers{deps: deps, logger: logger, started: time.Now()}
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(deps Deps, logger *slog.Logger) *gin.Engine {
	h := NewHandlers(deps, logger)

	r := gin.New()
	r.Use(RequestID(), Recovery(h.logger), RequestLogger(h.logger), CORS(deps.AllowedOrigins))

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	docs := v1.Group("/documents")
	{
		docs.POST("", h.UploadDocument)
		docs.GET("", h.ListDocuments)
		docs.GET("/export", h.ExportDocuments)
		docs.GET("/:id", h.GetDocument)
		docs.POST("/:id/process", h.ProcessDocument)
		docs.POST("/:id/reset", h.ResetDocument)
	}
	fb := v1.Group("/feedback")
	{
		fb.POST("", h.SubmitFeedback)
		fb.GET("", h.FeedbackIndex)
		fb.GET("/:id", h.GetFeedback)
	}
	v1.POST("/admin/feedback-index/init", h.InitFeedbackIndex)

	return r
}
