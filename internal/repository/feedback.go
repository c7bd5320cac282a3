package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// FeedbackRepository stores feedback entries. Index returns summaries in
// insertion order; an entry is visible to Get and Index once Add returns.
type FeedbackRepository interface {
	Add(ctx context.Context, e *entity.FeedbackEntry) error
	Get(ctx context.Context, id uuid.UUID) (*entity.FeedbackEntry, error)
	Index(ctx context.Context) ([]entity.FeedbackSummary, error)
}

type feedbackRepo struct {
	drv     *entsql.Driver
	dialect string
	log     *slog.Logger
}

func NewFeedbackRepository(db *DB, log *slog.Logger) FeedbackRepository {
	if log == nil {
		log = slog.Default()
	}
	return &feedbackRepo{drv: db.Driver(), dialect: db.Dialect(), log: log}
}

func (r *feedbackRepo) Add(ctx context.Context, e *entity.FeedbackEntry) error {
	stamp(&e.ID, &e.CreatedAt)
	if e.ProblemFields == nil {
		e.ProblemFields = []string{}
	}
	fields, err := json.Marshal(e.ProblemFields)
	if err != nil {
		return common.StoreError("encode problem fields", err)
	}
	q, args := entsql.Dialect(r.dialect).
		Insert(tableFeedback).
		Columns("id", "document_id", "comments", "custom_prompt", "problem_fields", "document_type", "extraction_data", "created_at").
		Values(e.ID.String(), e.DocumentID.String(), e.Comments, e.CustomPrompt, string(fields), e.DocumentType, rawOrNil(e.ExtractionData), e.CreatedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("feedback add failed", "feedback_id", e.ID, "err", err)
		return common.StoreError("add feedback", err)
	}
	r.log.Info("feedback stored", "feedback_id", e.ID, "document_id", e.DocumentID, "document_type", e.DocumentType)
	return nil
}

func (r *feedbackRepo) Get(ctx context.Context, id uuid.UUID) (*entity.FeedbackEntry, error) {
	q, args := entsql.Dialect(r.dialect).
		Select("id", "document_id", "comments", "custom_prompt", "problem_fields", "document_type", "extraction_data", "created_at").
		From(entsql.Table(tableFeedback)).
		Where(entsql.EQ("id", id.String())).
		Query()
	entries, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, common.NotFound(fmt.Sprintf("feedback %s not found", id))
	}
	return &entries[0], nil
}

func (r *feedbackRepo) Index(ctx context.Context) ([]entity.FeedbackSummary, error) {
	q, args := entsql.Dialect(r.dialect).
		Select("id", "document_id", "comments", "custom_prompt", "problem_fields", "document_type", "extraction_data", "created_at").
		From(entsql.Table(tableFeedback)).
		OrderBy("seq").
		Query()
	entries, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	out := make([]entity.FeedbackSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Summary())
	}
	return out, nil
}

func (r *feedbackRepo) query(ctx context.Context, q string, args []any) ([]entity.FeedbackEntry, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.log.Error("feedback query failed", "err", err)
		return nil, common.StoreError("query feedback", err)
	}
	defer rows.Close()

	var out []entity.FeedbackEntry
	for rows.Next() {
		var (
			e         entity.FeedbackEntry
			fields    string
			data      sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Comments, &e.CustomPrompt, &fields, &e.DocumentType, &data, &createdAt); err != nil {
			return nil, common.StoreError("scan feedback", err)
		}
		if err := json.Unmarshal([]byte(fields), &e.ProblemFields); err != nil {
			r.log.Warn("feedback problem fields unreadable", "feedback_id", e.ID, "err", err)
			e.ProblemFields = []string{}
		}
		if data.Valid {
			e.ExtractionData = []byte(data.String)
		}
		e.CreatedAt = createdAt
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("iterate feedback", err)
	}
	return out, nil
}
