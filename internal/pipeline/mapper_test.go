package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/internal/parser"
)

func TestMapExtractionPurchaseOrder(t *testing.T) {
	res := parser.Parse(`{
		"document_type": "Purchase Order",
		"document_number": 4500012345,
		"date": "2025-03-24",
		"vendor_information": {"name": "Acme Supply", "address": "1 Main St", "phone": "555-0100"},
		"customer_information": "Globex Corp",
		"payment_information": {"terms": "Net 30", "date_required": "2025-04-23", "method": "ACH"},
		"line_items": [
			{"item_number": "HZ1048SS", "quantity": 2, "unit_measure": "EA", "description": "Hinge, stainless", "unit_cost": "10.50", "amount": 21.00},
			{"item_number": "HZ1048S8P", "quantity": "1,000", "unit_measure": "PCS", "description": "Hinge pin", "unit_cost": "$0.25", "amount": "250"},
			"not an object",
			{"item_number": " hz-0o1 ", "quantity": -3, "unit_cost": -1, "amount": -5}
		]
	}`)
	require.False(t, res.Degraded())

	m := MapExtraction(res.Value)
	assert.Equal(t, "Purchase Order", m.DocumentType)
	assert.Equal(t, "4500012345", m.DocumentNumber)
	assert.Equal(t, "2025-03-24", m.DocumentDate)

	assert.Equal(t, "Acme Supply", m.Vendor.Name)
	assert.Equal(t, "1 Main St", m.Vendor.Address)
	assert.JSONEq(t, `{"name":"Acme Supply","address":"1 Main St","phone":"555-0100"}`, string(m.Vendor.ContactInfo))

	assert.Empty(t, m.Customer.Name)
	assert.JSONEq(t, `"Globex Corp"`, string(m.Customer.ContactInfo))

	assert.Equal(t, "Net 30", m.Payment.Terms)
	assert.Equal(t, "2025-04-23", m.Payment.DateRequired)
	assert.Equal(t, "ACH", m.Payment.Method)

	require.Len(t, m.LineItems, 3)
	first, second, third := m.LineItems[0], m.LineItems[1], m.LineItems[2]
	assert.Equal(t, "HZ1048SS", first.ItemNumber)
	assert.Equal(t, "HZ1048S8P", second.ItemNumber)
	assert.Equal(t, 2.0, first.Quantity)
	assert.Equal(t, 10.5, first.UnitCost)
	assert.Equal(t, 21.0, first.Amount)
	assert.Equal(t, 1000.0, second.Quantity)
	assert.Equal(t, 0.25, second.UnitCost)
	assert.Equal(t, 250.0, second.Amount)
	assert.Equal(t, []int{0, 1, 2}, []int{first.Position, second.Position, third.Position})

	// codes are kept byte for byte; negatives clamp except the amount
	assert.Equal(t, " hz-0o1 ", third.ItemNumber)
	assert.Zero(t, third.Quantity)
	assert.Zero(t, third.UnitCost)
	assert.Equal(t, -5.0, third.Amount)
}

func TestMapExtractionDefaults(t *testing.T) {
	for _, raw := range []string{
		`{"line_items": {"item_number": "X"}}`,
		`{"line_items": "none"}`,
		`{}`,
		"no json here",
	} {
		m := MapExtraction(parser.Parse(raw).Value)
		assert.Empty(t, m.LineItems, raw)
		assert.Empty(t, m.Vendor.Name, raw)
		assert.JSONEq(t, `{}`, string(m.Vendor.ContactInfo), raw)
		assert.JSONEq(t, `{}`, string(m.Payment.AdditionalInfo), raw)
	}

	m := MapExtraction(map[string]any{
		"line_items": []any{map[string]any{"quantity": "abc", "unit_cost": nil, "amount": true, "description": json.Number("12")}},
	})
	require.Len(t, m.LineItems, 1)
	assert.Zero(t, m.LineItems[0].Quantity)
	assert.Zero(t, m.LineItems[0].UnitCost)
	assert.Zero(t, m.LineItems[0].Amount)
	assert.Equal(t, "12", m.LineItems[0].Description)
	assert.Equal(t, "", m.LineItems[0].ItemNumber)
}

func TestMapExtractionIsPure(t *testing.T) {
	res := parser.Parse(`{"document_type":"Invoice","line_items":[{"item_number":"A1","quantity":1}]}`)
	assert.Equal(t, MapExtraction(res.Value), MapExtraction(res.Value))
}

func TestValidateExtraction(t *testing.T) {
	ok := parser.Parse(`{"document_type":"Invoice","line_items":[{"item_number":"A1","quantity":"2"}],
		"confidence":{"document_type":0.9,"line_items":[{"item_number":0.8}]}}`)
	assert.NoError(t, ValidateExtraction(ok.Value))
	assert.Empty(t, lowConfidence(ok.Value, 0.6))

	missing := parser.Parse(`{"document_number":"X"}`)
	assert.Error(t, ValidateExtraction(missing.Value))

	outOfRange := parser.Parse(`{"document_type":"Invoice","line_items":[],"confidence":{"date":1.5}}`)
	assert.Error(t, ValidateExtraction(outOfRange.Value))

	low := parser.Parse(`{"document_type":"Invoice","line_items":[],"confidence":{"vendor_information":{"name":0.2},"date":0.9}}`)
	assert.NoError(t, ValidateExtraction(low.Value))
	assert.Equal(t, []string{"vendor_information.name"}, lowConfidence(low.Value, 0.6))
}
