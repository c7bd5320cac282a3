package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// InterruptedMessage is stored on documents recovered from a stuck run.
const InterruptedMessage = "processing interrupted before completion; reset for retry"

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	List(ctx context.Context, limit int) ([]entity.Document, error)
	// MarkProcessing starts a run under a fresh RunID. It fails with a
	// conflict while another run holds the document in PROCESSING.
	MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	// Complete and Fail finish the run identified by runID. Both refuse
	// with a conflict once the document left PROCESSING or a newer run
	// took it over.
	Complete(ctx context.Context, id, runID uuid.UUID, c entity.Completion) error
	Fail(ctx context.Context, id, runID uuid.UUID, message string) error
	// ResetProcessing moves a PROCESSING document to ERROR. It reports false
	// when the document was not in PROCESSING.
	ResetProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	ListStuck(ctx context.Context, startedBefore time.Time) ([]uuid.UUID, error)
}

type documentRepo struct {
	drv     *entsql.Driver
	dialect string
	log     *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{drv: db.Driver(), dialect: db.Dialect(), log: log}
}

var documentColumns = []string{
	"id", "file_name", "media_type", "uploaded_at", "status",
	"processing_started_at", "processed_at", "document_type", "document_number",
	"document_date", "raw_extraction", "needs_review", "vendor_id", "customer_id", "payment_id", "run_id",
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = constants.StatusUploaded
	}
	q, args := entsql.Dialect(r.dialect).
		Insert(tableDocuments).
		Columns("id", "file_name", "media_type", "uploaded_at", "status", "needs_review").
		Values(doc.ID.String(), doc.FileName, doc.MediaType, doc.UploadedAt, string(doc.Status), false).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("document create failed", "document_id", doc.ID, "err", err)
		return common.StoreError("create document", err)
	}
	r.log.Info("document created", "document_id", doc.ID, "file_name", doc.FileName)
	return nil
}

func (r *documentRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	q, args := entsql.Dialect(r.dialect).
		Select(documentColumns...).
		From(entsql.Table(tableDocuments)).
		Where(entsql.EQ("id", id.String())).
		Query()
	docs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.NotFound(fmt.Sprintf("document %s not found", id))
	}
	return &docs[0], nil
}

func (r *documentRepo) List(ctx context.Context, limit int) ([]entity.Document, error) {
	sel := entsql.Dialect(r.dialect).
		Select(documentColumns...).
		From(entsql.Table(tableDocuments)).
		OrderBy(entsql.Desc("uploaded_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	return r.query(ctx, q, args)
}

func (r *documentRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	runnable := make([]any, 0, len(constants.RunnableStatuses))
	for _, s := range constants.RunnableStatuses {
		runnable = append(runnable, string(s))
	}
	now := time.Now().UTC()
	q, args := entsql.Dialect(r.dialect).
		Update(tableDocuments).
		Set("status", string(constants.StatusProcessing)).
		Set("processing_started_at", now).
		Set("run_id", uuid.NewString()).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.In("status", runnable...))).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.log.Error("document mark processing failed", "document_id", id, "err", err)
		return nil, common.StoreError("mark document processing", err)
	}
	if n == 0 {
		doc, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, common.Conflict(fmt.Sprintf("document %s is %s; reset it before starting a new run", id, doc.Status))
	}
	r.log.Info("document processing", "document_id", id)
	return r.Get(ctx, id)
}

func (r *documentRepo) Complete(ctx context.Context, id, runID uuid.UUID, c entity.Completion) error {
	q, args := entsql.Dialect(r.dialect).
		Update(tableDocuments).
		Set("status", string(constants.StatusCompleted)).
		Set("processed_at", time.Now().UTC()).
		Set("document_type", c.DocumentType).
		Set("document_number", c.DocumentNumber).
		Set("document_date", c.DocumentDate).
		Set("raw_extraction", string(c.RawExtraction)).
		Set("needs_review", c.NeedsReview).
		Set("vendor_id", c.VendorID.String()).
		Set("customer_id", c.CustomerID.String()).
		Set("payment_id", c.PaymentID.String()).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("status", string(constants.StatusProcessing)),
			entsql.EQ("run_id", runID.String()),
		)).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.log.Error("document complete failed", "document_id", id, "err", err)
		return common.StoreError("complete document", err)
	}
	if n == 0 {
		return common.Conflict(fmt.Sprintf("run %s no longer owns document %s", runID, id))
	}
	r.log.Info("document completed", "document_id", id, "document_type", c.DocumentType, "needs_review", c.NeedsReview)
	return nil
}

func (r *documentRepo) Fail(ctx context.Context, id, runID uuid.UUID, message string) error {
	n, err := r.toError(ctx, id, &runID, message)
	if err != nil {
		r.log.Error("document fail failed", "document_id", id, "err", err)
		return common.StoreError("mark document failed", err)
	}
	if n == 0 {
		return common.Conflict(fmt.Sprintf("run %s no longer owns document %s", runID, id))
	}
	r.log.Warn("document failed", "document_id", id, "error", message)
	return nil
}

func (r *documentRepo) ResetProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.toError(ctx, id, nil, InterruptedMessage)
	if err != nil {
		r.log.Error("document reset failed", "document_id", id, "err", err)
		return false, common.StoreError("reset document", err)
	}
	if n > 0 {
		r.log.Warn("document reset from PROCESSING", "document_id", id)
	}
	return n > 0, nil
}

func (r *documentRepo) ListStuck(ctx context.Context, startedBefore time.Time) ([]uuid.UUID, error) {
	q, args := entsql.Dialect(r.dialect).
		Select(documentColumns...).
		From(entsql.Table(tableDocuments)).
		Where(entsql.EQ("status", string(constants.StatusProcessing))).
		Query()
	docs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, d := range docs {
		if d.ProcessingStartedAt == nil || d.ProcessingStartedAt.Before(startedBefore) {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// toError moves a PROCESSING document to ERROR. A nil runID matches any run.
func (r *documentRepo) toError(ctx context.Context, id uuid.UUID, runID *uuid.UUID, message string) (int64, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("id", id.String()),
		entsql.EQ("status", string(constants.StatusProcessing)),
	}
	if runID != nil {
		preds = append(preds, entsql.EQ("run_id", runID.String()))
	}
	q, args := entsql.Dialect(r.dialect).
		Update(tableDocuments).
		Set("status", string(constants.StatusError)).
		Set("processed_at", time.Now().UTC()).
		Set("raw_extraction", errorPayload(message)).
		Where(entsql.And(preds...)).
		Query()
	return r.exec(ctx, q, args)
}

func (r *documentRepo) exec(ctx context.Context, q string, args []any) (int64, error) {
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *documentRepo) query(ctx context.Context, q string, args []any) ([]entity.Document, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.log.Error("document query failed", "err", err)
		return nil, common.StoreError("query documents", err)
	}
	defer rows.Close()

	var out []entity.Document
	for rows.Next() {
		var (
			d                           entity.Document
			id, status                  string
			startedAt, processedAt      sql.NullTime
			raw                         sql.NullString
			vendorID, customerID, payID uuid.NullUUID
			runID                       uuid.NullUUID
		)
		if err := rows.Scan(&id, &d.FileName, &d.MediaType, &d.UploadedAt, &status,
			&startedAt, &processedAt, &d.DocumentType, &d.DocumentNumber, &d.DocumentDate,
			&raw, &d.NeedsReview, &vendorID, &customerID, &payID, &runID); err != nil {
			return nil, common.StoreError("scan document", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, common.StoreError("scan document id", err)
		}
		d.ID = parsed
		d.Status = constants.DocumentStatus(status)
		d.ProcessingStartedAt = timePtr(startedAt)
		d.ProcessedAt = timePtr(processedAt)
		if raw.Valid && raw.String != "" {
			d.RawExtraction = []byte(raw.String)
		}
		d.VendorID = uuidPtr(vendorID)
		d.CustomerID = uuidPtr(customerID)
		d.PaymentID = uuidPtr(payID)
		d.RunID = uuidPtr(runID)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("iterate documents", err)
	}
	return out, nil
}
