// Package feedback stores user feedback about extractions and finds the
// entries relevant to a new document.
package feedback

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// Store is the durable feedback store. Get returns an error wrapping
// common.ErrNotFound for unknown ids. Index lists summaries in insertion order.
type Store interface {
	Add(ctx context.Context, e *entity.FeedbackEntry) error
	Get(ctx context.Context, id uuid.UUID) (*entity.FeedbackEntry, error)
	Index(ctx context.Context) ([]entity.FeedbackSummary, error)
}

// Match is one hit from a similarity search, best first.
type Match struct {
	FeedbackID   uuid.UUID
	DocumentType string
	Score        float32
}

// SimilaritySearcher ranks stored feedback by similarity to a document type.
// It is optional: retrieval works without one.
type SimilaritySearcher interface {
	FindSimilar(ctx context.Context, documentType string, limit int) ([]Match, error)
}

// Indexer maintains the similarity index as feedback arrives.
type Indexer interface {
	EnsureIndex(ctx context.Context) error
	IndexFeedback(ctx context.Context, s entity.FeedbackSummary) error
}
