package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// Document is an uploaded business document and the outcome of its latest run.
type Document struct {
	ID                  uuid.UUID                `json:"id"`
	FileName            string                   `json:"file_name"`
	MediaType           string                   `json:"media_type"`
	UploadedAt          time.Time                `json:"uploaded_at"`
	Status              constants.DocumentStatus `json:"status"`
	ProcessingStartedAt *time.Time               `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time               `json:"processed_at,omitempty"`
	DocumentType        string                   `json:"document_type,omitempty"`
	DocumentNumber      string                   `json:"document_number,omitempty"`
	DocumentDate        string                   `json:"document_date,omitempty"`
	RawExtraction       json.RawMessage          `json:"raw_extraction,omitempty"`
	NeedsReview         bool                     `json:"needs_review"`
	VendorID            *uuid.UUID               `json:"vendor_id,omitempty"`
	CustomerID          *uuid.UUID               `json:"customer_id,omitempty"`
	PaymentID           *uuid.UUID               `json:"payment_id,omitempty"`
	// RunID identifies the latest run; line items are scoped to it.
	RunID *uuid.UUID `json:"run_id,omitempty"`
}

// DocumentDetail is a document with its linked records resolved.
type DocumentDetail struct {
	Document
	Vendor    *PartyInfo   `json:"vendor,omitempty"`
	Customer  *PartyInfo   `json:"customer,omitempty"`
	Payment   *PaymentInfo `json:"payment,omitempty"`
	LineItems []LineItem   `json:"line_items"`
}

// Completion carries everything written when a run succeeds.
type Completion struct {
	DocumentType   string
	DocumentNumber string
	DocumentDate   string
	RawExtraction  json.RawMessage
	NeedsReview    bool
	VendorID       uuid.UUID
	CustomerID     uuid.UUID
	PaymentID      uuid.UUID
}
