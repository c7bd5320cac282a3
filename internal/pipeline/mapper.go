package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// Mapped is an extraction result flattened into storable records.
type Mapped struct {
	DocumentType   string
	DocumentNumber string
	DocumentDate   string
	Vendor         entity.PartyInfo
	Customer       entity.PartyInfo
	Payment        entity.PaymentInfo
	LineItems      []entity.LineItem
}

// MapExtraction is pure: the same result always yields the same records.
// Missing or mistyped fields become "" or 0; line_items that is not an
// array yields no items.
func MapExtraction(result map[string]any) Mapped {
	m := Mapped{
		DocumentType:   text(result["document_type"]),
		DocumentNumber: text(result["document_number"]),
		DocumentDate:   text(result["date"]),
		Vendor:         party(result["vendor_information"]),
		Customer:       party(result["customer_information"]),
		Payment:        payment(result["payment_information"]),
	}
	if items, ok := result["line_items"].([]any); ok {
		for _, raw := range items {
			obj, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			m.LineItems = append(m.LineItems, entity.LineItem{
				Position:    len(m.LineItems),
				ItemNumber:  text(obj["item_number"]),
				Quantity:    nonNegative(number(obj["quantity"])),
				UnitMeasure: text(obj["unit_measure"]),
				Description: text(obj["description"]),
				UnitCost:    nonNegative(number(obj["unit_cost"])),
				Amount:      number(obj["amount"]),
			})
		}
	}
	return m
}

func party(v any) entity.PartyInfo {
	obj, _ := v.(map[string]any)
	return entity.PartyInfo{
		Name:        text(obj["name"]),
		Address:     text(obj["address"]),
		ContactInfo: subtree(v),
	}
}

func payment(v any) entity.PaymentInfo {
	obj, _ := v.(map[string]any)
	method := text(obj["method"])
	if method == "" {
		method = text(obj["payment_method"])
	}
	return entity.PaymentInfo{
		Terms:          text(obj["terms"]),
		DateRequired:   text(obj["date_required"]),
		Method:         method,
		AdditionalInfo: subtree(v),
	}
}

// subtree keeps the whole extracted value; absent values become {}.
func subtree(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// text renders scalars verbatim and composites as compact JSON. Strings are
// returned untouched so item codes keep every character.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// number accepts JSON numbers and numeric strings such as "1,250.00" or "$12".
func number(v any) float64 {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		f, err = strconv.ParseFloat(cleanNumeric(t), 64)
	default:
		return 0
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£¥")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
