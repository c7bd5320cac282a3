package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PartyInfo is a vendor or customer record. ContactInfo keeps the whole
// extracted subtree so fields without a column are not lost.
type PartyInfo struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	ContactInfo json.RawMessage `json:"contact_info,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PaymentInfo holds payment terms plus the raw extracted subtree.
type PaymentInfo struct {
	ID             uuid.UUID       `json:"id"`
	Terms          string          `json:"terms"`
	DateRequired   string          `json:"date_required"`
	Method         string          `json:"method"`
	AdditionalInfo json.RawMessage `json:"additional_info,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LineItem is one row of a document's item table. ItemNumber is stored
// byte-for-byte as extracted.
type LineItem struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  uuid.UUID `json:"document_id"`
	Position    int       `json:"position"`
	ItemNumber  string    `json:"item_number"`
	Quantity    float64   `json:"quantity"`
	UnitMeasure string    `json:"unit_measure"`
	Description string    `json:"description"`
	UnitCost    float64   `json:"unit_cost"`
	Amount      float64   `json:"amount"`
}
