package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FeedbackEntry is one user submission about an extraction. Immutable once stored.
type FeedbackEntry struct {
	ID             uuid.UUID       `json:"id"`
	DocumentID     uuid.UUID       `json:"document_id"`
	Comments       string          `json:"comments,omitempty"`
	CustomPrompt   string          `json:"custom_prompt,omitempty"`
	ProblemFields  []string        `json:"problem_fields"`
	DocumentType   string          `json:"document_type"`
	ExtractionData json.RawMessage `json:"extraction_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// FeedbackSummary is the index row used for retrieval.
type FeedbackSummary struct {
	ID              uuid.UUID `json:"id"`
	DocumentID      uuid.UUID `json:"document_id"`
	CreatedAt       time.Time `json:"created_at"`
	ProblemFields   []string  `json:"problem_fields"`
	HasComments     bool      `json:"has_comments"`
	HasCustomPrompt bool      `json:"has_custom_prompt"`
	DocumentType    string    `json:"document_type"`
}

// Useful reports whether the entry carries anything a prompt can use.
func (s FeedbackSummary) Useful() bool {
	return s.HasComments || s.HasCustomPrompt
}

// Summary derives the index row for e.
func (e FeedbackEntry) Summary() FeedbackSummary {
	return FeedbackSummary{
		ID:              e.ID,
		DocumentID:      e.DocumentID,
		CreatedAt:       e.CreatedAt,
		ProblemFields:   e.ProblemFields,
		HasComments:     e.Comments != "",
		HasCustomPrompt: e.CustomPrompt != "",
		DocumentType:    e.DocumentType,
	}
}
