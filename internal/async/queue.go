// Package async dispatches document runs to background workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// ErrQueueClosed is returned by Enqueue once shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one run of the pipeline over a document.
type Job struct {
	DocumentID  uuid.UUID `json:"document_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs the pipeline; *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, documentID uuid.UUID) (*entity.Document, error)
}
