package inference

import (
	"strings"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// ClassificationPrompt asks only for the document type.
const ClassificationPrompt = "What type of business document is this? Respond with just the document type (e.g., 'Invoice', 'Purchase Order', 'Receipt', etc.)."

// BaseExtractionPrompt is the extraction instruction before any feedback is applied.
const BaseExtractionPrompt = `I have a business document that appears to be an invoice, purchase order, receipt, or similar document.

Please extract all relevant information from this document and organize it into a structured JSON format with the following fields:
- document_type: The type of document (invoice, purchase order, receipt, etc.)
- document_number: Any reference or document numbers
- date: Date on the document
- vendor_information: Name, address, contact info of the vendor/supplier
- customer_information: Name, address, contact info of the customer if present
- amounts: All monetary amounts (subtotal, tax, total, etc.)
- line_items: An array of items with these fields for each:
  * item_number: The exact item/product number as displayed. Be extremely precise with alphanumeric item codes - preserve exact characters. Beware of visual confusions: 8/B, 0/O, 5/S, 1/I, S/5, E/B, Z/2. Consecutive similar codes (like "HZ1048SS" followed by "HZ1048S8P") should be distinguished carefully.
  * quantity: The numerical quantity ordered
  * unit_measure: The unit of measure (e.g., EA, PCS, etc.)
  * description: The full item description exactly as shown
  * unit_cost: The cost per unit as a number
  * amount: The total amount for this line item as a number
- payment_information: Terms, methods, etc.

Additionally, I need you to include a confidence score for each extracted field. Add a parallel structure called "confidence" with the same hierarchy as the main data, where each field contains a value between 0.0 and 1.0 indicating your confidence in the extraction. For example:
{
  "document_type": "Invoice",
  "document_number": "INV-12345",
  "confidence": {
    "document_type": 0.95,
    "document_number": 0.85
  }
}

Important:
- Pay extra attention to item numbers - they must be exact
- Double-check all numerical values - ensure they match the document precisely
- Ensure description fields capture full text exactly as shown
- Do not omit any line items
- Provide realistic confidence scores based on clarity/quality of the text in the document

Format the response as clean, structured JSON only. No explanatory text.
`

const (
	feedbackHeader = "\n\nPREVIOUS FEEDBACK TO INCORPORATE:\n"
	feedbackFooter = "\n\nPlease use the above feedback to improve your extraction quality.\n"
)

// Enhance appends guidance derived from prior feedback to base. With nothing
// to add it returns base unchanged.
func Enhance(base string, entries []entity.FeedbackEntry) string {
	var lines []string
	for _, e := range entries {
		if e.CustomPrompt != "" {
			lines = append(lines, "Consider this alternative extraction approach: "+e.CustomPrompt)
		}
		if e.Comments != "" {
			lines = append(lines, `Previous feedback noted: "`+e.Comments+`"`)
		}
		if len(e.ProblemFields) > 0 {
			lines = append(lines, "Pay special attention to these fields that had previous extraction issues: "+strings.Join(e.ProblemFields, ", "))
		}
	}
	if len(lines) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(feedbackHeader)
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l)
	}
	b.WriteString(feedbackFooter)
	return b.String()
}
