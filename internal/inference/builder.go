package inference

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
	"github.com/joseph-ayodele/document-extractor/internal/feedback"
)

// RelevantFinder yields the feedback summaries worth applying to a document type.
type RelevantFinder interface {
	FindRelevant(ctx context.Context, documentType string) []entity.FeedbackSummary
}

// PromptBuilder turns retrieved feedback into an enhanced extraction prompt.
type PromptBuilder struct {
	finder RelevantFinder
	store  feedback.Store
	logger *slog.Logger
}

func NewPromptBuilder(finder RelevantFinder, store feedback.Store, logger *slog.Logger) *PromptBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptBuilder{finder: finder, store: store, logger: logger}
}

// Build never fails; entries that cannot be loaded are skipped.
func (b *PromptBuilder) Build(ctx context.Context, base, documentType string) string {
	start := time.Now()
	relevant := b.finder.FindRelevant(ctx, documentType)
	if len(relevant) == 0 {
		return base
	}

	loaded := make([]*entity.FeedbackEntry, len(relevant))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range relevant {
		g.Go(func() error {
			e, err := b.store.Get(gctx, s.ID)
			if err != nil {
				b.logger.Warn("prompt.feedback.load_failed", "feedback_id", s.ID, "error", err)
				return nil
			}
			loaded[i] = e
			return nil
		})
	}
	_ = g.Wait()

	entries := make([]entity.FeedbackEntry, 0, len(loaded))
	for _, e := range loaded {
		if e != nil {
			entries = append(entries, *e)
		}
	}

	prompt := Enhance(base, entries)
	b.logger.Info("prompt.built",
		"document_type", documentType,
		"feedback_used", len(entries),
		"enhanced", prompt != base,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return prompt
}
