// Package ingest turns files dropped into an inbox directory into queued
// documents.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/document-extractor/internal/documents"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// Uploader stores a file as a new document; *documents.Service satisfies it.
type Uploader interface {
	Upload(ctx context.Context, up documents.Upload) (*entity.Document, error)
}

// Result is the outcome for one inbox file.
type Result struct {
	SourcePath string
	DocumentID string
	Queued     bool
	Err        string
}

// ingestedDir receives files once they have been uploaded.
const ingestedDir = ".ingested"
