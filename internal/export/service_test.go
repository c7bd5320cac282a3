package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticLister struct {
	details []entity.DocumentDetail
	err     error
}

func (s staticLister) ListDetails(context.Context, int) ([]entity.DocumentDetail, error) {
	return s.details, s.err
}

func TestDocumentsXLSX(t *testing.T) {
	id := uuid.New()
	details := []entity.DocumentDetail{
		{
			Document: entity.Document{
				ID:             id,
				FileName:       "po.pdf",
				UploadedAt:     time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
				Status:         constants.StatusCompleted,
				DocumentType:   "Purchase Order",
				DocumentNumber: "PO-77",
				NeedsReview:    true,
			},
			Vendor:  &entity.PartyInfo{Name: "Acme"},
			Payment: &entity.PaymentInfo{Terms: "Net 30"},
			LineItems: []entity.LineItem{
				{Position: 1, ItemNumber: "HZ1048SS", Quantity: 2, UnitCost: 3.5, Amount: 7},
				{Position: 2, ItemNumber: "HZ1048S8P", Quantity: 1, UnitCost: 5, Amount: 5},
			},
		},
		{
			Document:  entity.Document{ID: uuid.New(), FileName: "scan.png", Status: constants.StatusUploaded},
			LineItems: []entity.LineItem{},
		},
	}

	svc := NewService(staticLister{details: details}, discard)
	out, err := svc.DocumentsXLSX(context.Background(), 0)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetDocuments, SheetLineItems}, f.GetSheetList())

	docs, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, documentHeaders, docs[0])
	assert.Equal(t, id.String(), docs[1][0])
	assert.Equal(t, "2024-03-01T09:30:00Z", docs[1][1])
	assert.Equal(t, "COMPLETED", docs[1][3])
	assert.Equal(t, "Purchase Order", docs[1][4])
	assert.Equal(t, "Acme", docs[1][7])
	assert.Equal(t, "Net 30", docs[1][9])
	assert.Equal(t, "TRUE", docs[1][10])
	assert.Equal(t, "2", docs[1][11])
	assert.Equal(t, "12", docs[1][12])
	assert.Equal(t, "UPLOADED", docs[2][3])

	items, err := f.GetRows(SheetLineItems)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, lineItemHeaders, items[0])
	assert.Equal(t, "HZ1048SS", items[1][3])
	assert.Equal(t, "HZ1048S8P", items[2][3])
	assert.Equal(t, "3.5", items[1][7])
}

func TestDocumentsXLSXListError(t *testing.T) {
	svc := NewService(staticLister{err: errors.New("db down")}, discard)
	_, err := svc.DocumentsXLSX(context.Background(), 0)
	assert.ErrorContains(t, err, "db down")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "héé…", truncate("héééé", 4))
}
