package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

const (
	maxCommentsLength     = 10_000
	maxCustomPromptLength = 20_000
)

// ErrIndexDisabled is returned by index maintenance when no similarity index is configured.
var ErrIndexDisabled = errors.New("feedback similarity index is not configured")

// Submission is a feedback request as received from a client.
type Submission struct {
	DocumentID     string          `json:"document_id"`
	Comments       string          `json:"comments"`
	CustomPrompt   string          `json:"custom_prompt"`
	ProblemFields  []string        `json:"problem_fields"`
	ExtractionData json.RawMessage `json:"extraction_data"`
}

// Service records feedback. The store is authoritative; the similarity
// index is best effort and its failures are only logged.
type Service struct {
	store   Store
	indexer Indexer
	logger  *slog.Logger
}

func NewService(store Store, indexer Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, indexer: indexer, logger: logger}
}

func (s *Service) Submit(ctx context.Context, sub Submission) (*entity.FeedbackEntry, error) {
	v := common.NewValidator().
		Field("document_id", sub.DocumentID, common.Required, common.UUID).
		Field("comments", sub.Comments, common.MaxLength(maxCommentsLength)).
		Field("custom_prompt", sub.CustomPrompt, common.MaxLength(maxCustomPromptLength))
	if len(sub.ExtractionData) > 0 && !json.Valid(sub.ExtractionData) {
		v.Field("extraction_data", nil, func(field string, value any) *common.ValidationError {
			return &common.ValidationError{Field: field, Message: "must be valid JSON"}
		})
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	entry := &entity.FeedbackEntry{
		ID:             uuid.New(),
		DocumentID:     uuid.MustParse(sub.DocumentID),
		Comments:       sub.Comments,
		CustomPrompt:   sub.CustomPrompt,
		ProblemFields:  cleanFields(sub.ProblemFields),
		DocumentType:   DocumentTypeOf(sub.ExtractionData),
		ExtractionData: sub.ExtractionData,
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return nil, err
	}

	if s.indexer != nil {
		if err := s.indexer.IndexFeedback(ctx, entry.Summary()); err != nil {
			s.logger.Warn("feedback.index.failed", "feedback_id", entry.ID, "error", err)
		}
	}
	s.logger.Info("feedback.submitted",
		"feedback_id", entry.ID,
		"document_id", entry.DocumentID,
		"document_type", entry.DocumentType,
		"problem_fields", len(entry.ProblemFields))
	return entry, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.FeedbackEntry, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Index(ctx context.Context) ([]entity.FeedbackSummary, error) {
	return s.store.Index(ctx)
}

// InitIndex creates the similarity index if needed and loads every stored
// entry into it. It returns the number of entries indexed.
func (s *Service) InitIndex(ctx context.Context) (int, error) {
	if s.indexer == nil {
		return 0, ErrIndexDisabled
	}
	if err := s.indexer.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	index, err := s.store.Index(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sum := range index {
		if err := s.indexer.IndexFeedback(ctx, sum); err != nil {
			s.logger.Warn("feedback.reindex.entry_failed", "feedback_id", sum.ID, "error", err)
			continue
		}
		n++
	}
	s.logger.Info("feedback.reindex.done", "indexed", n, "total", len(index))
	return n, nil
}

// DocumentTypeOf reads document_type from an extraction payload, falling
// back to the unknown type.
func DocumentTypeOf(extraction json.RawMessage) string {
	if len(extraction) == 0 {
		return constants.UnknownDocumentType
	}
	t := strings.TrimSpace(gjson.GetBytes(extraction, "document_type").String())
	if t == "" {
		return constants.UnknownDocumentType
	}
	return t
}

func cleanFields(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, f := range in {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
