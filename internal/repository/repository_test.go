package repository

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory(context.Background(), discardLogger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(discardLogger) })
	return db
}

func newDocument(t *testing.T, repo DocumentRepository) *entity.Document {
	t.Helper()
	doc := &entity.Document{FileName: "invoice.pdf", MediaType: "application/pdf"}
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := NewDocumentRepository(db, nil)
	records := NewRecordRepository(db, nil)

	doc := newDocument(t, docs)
	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUploaded, got.Status)
	assert.Nil(t, got.ProcessedAt)

	processing, err := docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, processing.Status)
	require.NotNil(t, processing.ProcessingStartedAt)
	require.NotNil(t, processing.RunID)
	runID := *processing.RunID

	// a second run must not start while the first holds the document
	_, err = docs.MarkProcessing(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrConflict)

	vendor := &entity.PartyInfo{Name: "Acme Supply", Address: "1 Main St", ContactInfo: json.RawMessage(`{"name":"Acme Supply"}`)}
	customer := &entity.PartyInfo{Name: "Globex"}
	payment := &entity.PaymentInfo{Terms: "Net 30", DateRequired: "2025-04-23"}
	require.NoError(t, records.CreateVendor(ctx, vendor))
	require.NoError(t, records.CreateCustomer(ctx, customer))
	require.NoError(t, records.CreatePayment(ctx, payment))
	require.NoError(t, records.CreateLineItems(ctx, doc.ID, runID, []entity.LineItem{
		{ItemNumber: "HZ1048SS", Quantity: 2, UnitMeasure: "EA", UnitCost: 10, Amount: 20},
		{ItemNumber: "HZ1048S8P", Quantity: 1, UnitMeasure: "EA", UnitCost: 5.5, Amount: 5.5},
	}))

	require.NoError(t, docs.Complete(ctx, doc.ID, runID, entity.Completion{
		DocumentType:   "Invoice",
		DocumentNumber: "INV-1",
		DocumentDate:   "2025-03-24",
		RawExtraction:  json.RawMessage(`{"document_type":"Invoice"}`),
		VendorID:       vendor.ID,
		CustomerID:     customer.ID,
		PaymentID:      payment.ID,
	}))

	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.Equal(t, "INV-1", got.DocumentNumber)
	require.NotNil(t, got.VendorID)
	assert.Equal(t, vendor.ID, *got.VendorID)
	assert.NotNil(t, got.ProcessedAt)
	assert.JSONEq(t, `{"document_type":"Invoice"}`, string(got.RawExtraction))

	items, err := records.ListLineItems(ctx, doc.ID, runID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "HZ1048SS", items[0].ItemNumber)
	assert.Equal(t, "HZ1048S8P", items[1].ItemNumber)

	v, err := records.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Supply", v.Name)
	assert.JSONEq(t, `{"name":"Acme Supply"}`, string(v.ContactInfo))

	p, err := records.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Net 30", p.Terms)

	// completion is terminal for the run; completing again is refused
	err = docs.Complete(ctx, doc.ID, runID, entity.Completion{VendorID: vendor.ID, CustomerID: customer.ID, PaymentID: payment.ID})
	assert.ErrorIs(t, err, common.ErrConflict)

	// an explicit new run may start from COMPLETED, with its own line items
	rerun, err := docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, rerun.RunID)
	assert.NotEqual(t, runID, *rerun.RunID)
	items, err = records.ListLineItems(ctx, doc.ID, *rerun.RunID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDocumentFailAndReset(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := NewDocumentRepository(db, nil)

	doc := newDocument(t, docs)

	// failing requires a run in flight
	assert.ErrorIs(t, docs.Fail(ctx, doc.ID, uuid.New(), "boom"), common.ErrConflict)

	run, err := docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)
	require.NoError(t, docs.Fail(ctx, doc.ID, *run.RunID, "inference returned 500"))

	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
	assert.JSONEq(t, `{"error":"inference returned 500"}`, string(got.RawExtraction))

	ok, err := docs.ResetProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok, "reset only applies to PROCESSING")

	_, err = docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)

	stuck, err := docs.ListStuck(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{doc.ID}, stuck)

	stuck, err = docs.ListStuck(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stuck)

	ok, err = docs.ResetProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
	assert.Contains(t, string(got.RawExtraction), "interrupted")
}

func TestStaleRunCannotFinishNewerRun(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentRepository(newTestDB(t), nil)
	doc := newDocument(t, docs)

	first, err := docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)
	ok, err := docs.ResetProcessing(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	second, err := docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)

	err = docs.Complete(ctx, doc.ID, *first.RunID, entity.Completion{DocumentType: "stale"})
	assert.ErrorIs(t, err, common.ErrConflict)
	err = docs.Fail(ctx, doc.ID, *first.RunID, "late failure")
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)
	assert.Empty(t, got.DocumentType)
	assert.Equal(t, *second.RunID, *got.RunID)

	require.NoError(t, docs.Complete(ctx, doc.ID, *second.RunID, entity.Completion{DocumentType: "Invoice"}))
	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.Equal(t, "Invoice", got.DocumentType)
}

func TestOpenAcceptsDriverNames(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"sqlite", "sqlite3", ""} {
		t.Run("driver="+driver, func(t *testing.T) {
			db, err := Open(ctx, Config{Driver: driver, DSN: "file:" + uuid.NewString() + "?mode=memory"}, discardLogger)
			require.NoError(t, err)
			t.Cleanup(func() { db.Close(discardLogger) })
			require.NoError(t, db.HealthCheck(ctx, time.Second))
		})
	}

	_, err := Open(ctx, Config{Driver: "mysql"}, discardLogger)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDocumentNotFound(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentRepository(newTestDB(t), nil)

	_, err := docs.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = docs.MarkProcessing(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFeedbackRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedbackRepository(newTestDB(t), nil)

	first := &entity.FeedbackEntry{
		DocumentID:     uuid.New(),
		Comments:       "vendor name was truncated",
		ProblemFields:  []string{"vendor_information"},
		DocumentType:   "Invoice",
		ExtractionData: json.RawMessage(`{"document_type":"Invoice"}`),
	}
	second := &entity.FeedbackEntry{DocumentID: uuid.New(), DocumentType: "Receipt"}
	require.NoError(t, repo.Add(ctx, first))
	require.NoError(t, repo.Add(ctx, second))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Comments, got.Comments)
	assert.Equal(t, []string{"vendor_information"}, got.ProblemFields)
	assert.JSONEq(t, `{"document_type":"Invoice"}`, string(got.ExtractionData))

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, first.ID, index[0].ID)
	assert.True(t, index[0].Useful())
	assert.Equal(t, second.ID, index[1].ID)
	assert.False(t, index[1].Useful())
	assert.Equal(t, []string{}, index[1].ProblemFields)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
