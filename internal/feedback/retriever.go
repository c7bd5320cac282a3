package feedback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// MaxRelevant bounds how many feedback entries feed one prompt.
const MaxRelevant = 5

// Retriever resolves the feedback relevant to a document type. The keyword
// fallback over the store index is always available; a SimilaritySearcher,
// when configured, is tried first and its failures are never surfaced.
type Retriever struct {
	store   Store
	similar SimilaritySearcher
	logger  *slog.Logger
}

func NewRetriever(store Store, similar SimilaritySearcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, similar: similar, logger: logger}
}

// FindRelevant returns at most MaxRelevant useful summaries. It never fails.
func (r *Retriever) FindRelevant(ctx context.Context, documentType string) []entity.FeedbackSummary {
	start := time.Now()
	if r.similar != nil {
		hits, err := r.primary(ctx, documentType)
		switch {
		case err != nil:
			r.logger.Warn("feedback.retrieve.primary_failed", "document_type", documentType, "error", err)
		case len(hits) > 0:
			r.logger.Info("feedback.retrieve.primary",
				"document_type", documentType, "hits", len(hits),
				"elapsed_ms", time.Since(start).Milliseconds())
			return hits
		}
	}

	index, err := r.store.Index(ctx)
	if err != nil {
		r.logger.Warn("feedback.retrieve.index_failed", "document_type", documentType, "error", err)
		return nil
	}
	out := SelectRelevant(index, documentType, MaxRelevant)
	r.logger.Info("feedback.retrieve.fallback",
		"document_type", documentType, "indexed", len(index), "hits", len(out),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out
}

func (r *Retriever) primary(ctx context.Context, documentType string) ([]entity.FeedbackSummary, error) {
	matches, err := r.similar.FindSimilar(ctx, documentType, MaxRelevant)
	if err != nil {
		return nil, err
	}
	if len(matches) > MaxRelevant {
		matches = matches[:MaxRelevant]
	}

	// resolve in parallel, keep similarity order
	resolved := make([]*entity.FeedbackEntry, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range matches {
		g.Go(func() error {
			e, err := r.store.Get(gctx, m.FeedbackID)
			if errors.Is(err, common.ErrNotFound) {
				r.logger.Debug("feedback.retrieve.stale_hit", "feedback_id", m.FeedbackID)
				return nil
			}
			if err != nil {
				return err
			}
			resolved[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []entity.FeedbackSummary
	for _, e := range resolved {
		if e == nil {
			continue
		}
		if s := e.Summary(); s.Useful() {
			out = append(out, s)
		}
	}
	return out, nil
}

// SelectRelevant applies the keyword fallback to an insertion-ordered index:
// type match, useful entries only, then the last limit entries.
func SelectRelevant(index []entity.FeedbackSummary, documentType string, limit int) []entity.FeedbackSummary {
	var useful []entity.FeedbackSummary
	for _, s := range index {
		if s.Useful() && MatchesType(documentType, s.DocumentType) {
			useful = append(useful, s)
		}
	}
	if limit > 0 && len(useful) > limit {
		useful = useful[len(useful)-limit:]
	}
	return useful
}

// MatchesType compares document types case-insensitively after trimming:
// equal, or either one contains the other. Empty types match nothing.
func MatchesType(query, entry string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	e := strings.ToLower(strings.TrimSpace(entry))
	if q == "" || e == "" {
		return false
	}
	return q == e || strings.Contains(e, q) || strings.Contains(q, e)
}
