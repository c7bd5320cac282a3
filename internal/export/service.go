// Package export renders documents and their line items as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

const (
	SheetDocuments = "Documents"
	SheetLineItems = "Line Items"
)

// DetailLister is the read side the exporter needs; *documents.Service satisfies it.
type DetailLister interface {
	ListDetails(ctx context.Context, limit int) ([]entity.DocumentDetail, error)
}

type Service struct {
	docs   DetailLister
	logger *slog.Logger
}

func NewService(docs DetailLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

var documentHeaders = []string{
	"Document ID",
	"Uploaded At",
	"File Name",
	"Status",
	"Document Type",
	"Document Number",
	"Document Date",
	"Vendor",
	"Customer",
	"Payment Terms",
	"Needs Review",
	"Line Items",
	"Total Amount",
}

var lineItemHeaders = []string{
	"Document ID",
	"File Name",
	"Position",
	"Item Number",
	"Quantity",
	"Unit Measure",
	"Description",
	"Unit Cost",
	"Amount",
}

// DocumentsXLSX returns a workbook with one row per document on the first
// sheet and one row per line item of each latest run on the second.
func (s *Service) DocumentsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	details, err := s.docs.ListDetails(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName(f.GetSheetName(0), SheetDocuments); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetLineItems); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, SheetDocuments, 1, toAny(documentHeaders))
	writeRow(f, SheetLineItems, 1, toAny(lineItemHeaders))

	docRow, itemRow := 2, 2
	for _, d := range details {
		var total float64
		for _, li := range d.LineItems {
			total += li.Amount
			writeRow(f, SheetLineItems, itemRow, []any{
				d.ID.String(),
				d.FileName,
				li.Position,
				li.ItemNumber,
				li.Quantity,
				li.UnitMeasure,
				truncate(li.Description, 240),
				li.UnitCost,
				li.Amount,
			})
			itemRow++
		}

		writeRow(f, SheetDocuments, docRow, []any{
			d.ID.String(),
			d.UploadedAt.UTC().Format(time.RFC3339),
			d.FileName,
			string(d.Status),
			d.DocumentType,
			d.DocumentNumber,
			d.DocumentDate,
			partyName(d.Vendor),
			partyName(d.Customer),
			paymentTerms(d.Payment),
			d.NeedsReview,
			len(d.LineItems),
			total,
		})
		docRow++
	}

	_ = f.SetColWidth(SheetDocuments, "A", "A", 38)
	_ = f.SetColWidth(SheetDocuments, "B", "C", 24)
	_ = f.SetColWidth(SheetDocuments, "D", "G", 18)
	_ = f.SetColWidth(SheetDocuments, "H", "J", 28)
	_ = f.SetColWidth(SheetLineItems, "A", "A", 38)
	_ = f.SetColWidth(SheetLineItems, "B", "B", 24)
	_ = f.SetColWidth(SheetLineItems, "D", "D", 18)
	_ = f.SetColWidth(SheetLineItems, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(details),
		"line_items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func partyName(p *entity.PartyInfo) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func paymentTerms(p *entity.PaymentInfo) string {
	if p == nil {
		return ""
	}
	return p.Terms
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
