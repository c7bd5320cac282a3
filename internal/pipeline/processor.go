// Package pipeline runs one document through classification, prompt
// building, extraction, parsing and persistence, and owns the lifecycle
// transitions of each run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/auth"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
	"github.com/joseph-ayodele/document-extractor/internal/inference"
	"github.com/joseph-ayodele/document-extractor/internal/parser"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
	"github.com/joseph-ayodele/document-extractor/internal/storage"
)

// Model is the inference surface a run needs.
type Model interface {
	Classify(ctx context.Context, doc inference.Document, token string) string
	Invoke(ctx context.Context, doc inference.Document, prompt, token string) (string, error)
}

// PromptBuilder enhances the base prompt with feedback for a document type.
type PromptBuilder interface {
	Build(ctx context.Context, base, documentType string) string
}

// Config holds thresholds for the review flag.
type Config struct {
	MinConfidence float64 // default 0.60
}

type Processor struct {
	Logger    *slog.Logger
	Cfg       Config
	Documents repository.DocumentRepository
	Records   repository.RecordRepository
	Blobs     storage.BlobStore
	Tokens    auth.Provider
	Model     Model
	Prompts   PromptBuilder
}

func NewProcessor(
	logger *slog.Logger,
	cfg Config,
	docs repository.DocumentRepository,
	records repository.RecordRepository,
	blobs storage.BlobStore,
	tokens auth.Provider,
	model Model,
	prompts PromptBuilder,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.60
	}
	return &Processor{
		Logger:    logger,
		Cfg:       cfg,
		Documents: docs,
		Records:   records,
		Blobs:     blobs,
		Tokens:    tokens,
		Model:     model,
		Prompts:   prompts,
	}
}

// Process runs the pipeline for one document and returns it in its final
// state. A refused start (unknown id, run already in flight) leaves the
// document untouched; a failure during the run moves it to ERROR with the
// message recorded in its raw extraction. A failed completion write leaves
// the document in its last status.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID) (*entity.Document, error) {
	start := time.Now()
	logger := common.LoggerFrom(common.WithDocumentID(ctx, documentID.String()), p.Logger)

	doc, err := p.Documents.MarkProcessing(ctx, documentID)
	if err != nil {
		logger.Warn("pipeline.process.refused", "error", err)
		return nil, err
	}
	if doc.RunID == nil {
		if _, rerr := p.Documents.ResetProcessing(ctx, doc.ID); rerr != nil {
			logger.Error("pipeline.process.reset_failed", "error", rerr)
		}
		return nil, common.StoreError("run id missing on processing document", nil)
	}
	runID := *doc.RunID
	logger = logger.With("run_id", runID)
	logger.Info("pipeline.process.start", "file_name", doc.FileName, "media_type", doc.MediaType)

	completion, err := p.run(ctx, logger, doc, runID)
	if err != nil {
		logger.Error("pipeline.process.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if ferr := p.Documents.Fail(ctx, doc.ID, runID, err.Error()); ferr != nil {
			logger.Error("pipeline.process.fail_not_recorded", "error", ferr)
		}
		return nil, err
	}
	// A refused or failed completion leaves the document as it was:
	// still PROCESSING for this run, or owned by a newer one.
	if err := p.Documents.Complete(ctx, doc.ID, runID, completion); err != nil {
		logger.Error("pipeline.process.complete_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	logger.Info("pipeline.process.ok",
		"document_type", completion.DocumentType,
		"needs_review", completion.NeedsReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return p.Documents.Get(ctx, doc.ID)
}

func (p *Processor) run(ctx context.Context, logger *slog.Logger, doc *entity.Document, runID uuid.UUID) (entity.Completion, error) {
	data, err := p.Blobs.Get(ctx, storage.KeyFor(doc.ID, doc.FileName))
	if err != nil {
		return entity.Completion{}, fmt.Errorf("read document: %w", err)
	}
	input := inference.Document{Data: data, MediaType: mediaTypeOf(doc)}

	token, err := p.Tokens.Token(ctx)
	if err != nil {
		return entity.Completion{}, err
	}

	label := p.Model.Classify(ctx, input, token)
	logger.Info("pipeline.classify.ok", "label", label)

	prompt := p.Prompts.Build(ctx, inference.BaseExtractionPrompt, label)

	raw, err := p.invoke(ctx, logger, input, prompt, token)
	if err != nil {
		return entity.Completion{}, err
	}

	parsed := parser.Parse(raw)
	needsReview := parsed.Degraded()
	if parsed.Degraded() {
		logger.Warn("pipeline.parse.degraded", "raw_len", len(raw))
	} else {
		if err := ValidateExtraction(parsed.Value); err != nil {
			logger.Warn("pipeline.validate.failed", "error", err)
			needsReview = true
		}
		if low := lowConfidence(parsed.Value, p.Cfg.MinConfidence); len(low) > 0 {
			logger.Warn("pipeline.validate.low_confidence", "fields", low)
			needsReview = true
		}
	}

	mapped := MapExtraction(parsed.Value)
	if mapped.DocumentType == "" && label != constants.UnknownDocumentType {
		mapped.DocumentType = label
	}

	if err := p.Records.CreateVendor(ctx, &mapped.Vendor); err != nil {
		return entity.Completion{}, err
	}
	if err := p.Records.CreateCustomer(ctx, &mapped.Customer); err != nil {
		return entity.Completion{}, err
	}
	if err := p.Records.CreatePayment(ctx, &mapped.Payment); err != nil {
		return entity.Completion{}, err
	}
	if err := p.Records.CreateLineItems(ctx, doc.ID, runID, mapped.LineItems); err != nil {
		return entity.Completion{}, err
	}

	logger.Info("pipeline.map.ok",
		"source", parsed.Source.String(),
		"line_items", len(mapped.LineItems),
		"needs_review", needsReview,
	)
	return entity.Completion{
		DocumentType:   mapped.DocumentType,
		DocumentNumber: mapped.DocumentNumber,
		DocumentDate:   mapped.DocumentDate,
		RawExtraction:  parsed.JSON(),
		NeedsReview:    needsReview,
		VendorID:       mapped.Vendor.ID,
		CustomerID:     mapped.Customer.ID,
		PaymentID:      mapped.Payment.ID,
	}, nil
}

// invoke retries once with a fresh token when the cached one is rejected.
func (p *Processor) invoke(ctx context.Context, logger *slog.Logger, doc inference.Document, prompt, token string) (string, error) {
	raw, err := p.Model.Invoke(ctx, doc, prompt, token)
	if err == nil || !errors.Is(err, common.ErrUnauthorized) {
		return raw, err
	}
	inv, ok := p.Tokens.(auth.Invalidator)
	if !ok {
		return "", err
	}
	logger.Warn("pipeline.invoke.token_rejected", "error", err)
	inv.Invalidate(ctx)
	fresh, terr := p.Tokens.Token(ctx)
	if terr != nil {
		return "", terr
	}
	return p.Model.Invoke(ctx, doc, prompt, fresh)
}

// Reset recovers a document stuck in PROCESSING by moving it to ERROR.
func (p *Processor) Reset(ctx context.Context, documentID uuid.UUID) (*entity.Document, error) {
	ok, err := p.Documents.ResetProcessing(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc, err := p.Documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Conflict(fmt.Sprintf("document %s is %s, not PROCESSING", documentID, doc.Status))
	}
	p.Logger.Warn("pipeline.reset", "document_id", documentID)
	return doc, nil
}

// SweepStuck resets every document whose run started more than olderThan ago.
// It returns how many documents were reset.
func (p *Processor) SweepStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := p.Documents.ListStuck(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		ok, err := p.Documents.ResetProcessing(ctx, id)
		if err != nil {
			p.Logger.Error("pipeline.sweep.reset_failed", "document_id", id, "error", err)
			continue
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		p.Logger.Warn("pipeline.sweep.reset", "count", n, "older_than", olderThan.String())
	}
	return n, nil
}

func mediaTypeOf(doc *entity.Document) string {
	if doc.MediaType != "" {
		return doc.MediaType
	}
	if mt, ok := constants.MediaTypeForExt(filepath.Ext(doc.FileName)); ok {
		return mt
	}
	return "application/octet-stream"
}
