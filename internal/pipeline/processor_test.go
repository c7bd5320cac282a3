package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
	"github.com/joseph-ayodele/document-extractor/internal/feedback"
	"github.com/joseph-ayodele/document-extractor/internal/inference"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
	"github.com/joseph-ayodele/document-extractor/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const purchaseOrderReply = "Here is the data:\n```json\n" + `{
  "document_type": "Purchase Order",
  "document_number": "PO-1001",
  "date": "2025-03-24",
  "vendor_information": {"name": "Acme Supply", "address": "1 Main St"},
  "customer_information": {"name": "Globex"},
  "payment_information": {"terms": "Net 30"},
  "line_items": [
    {"item_number": "HZ1048SS", "quantity": 2, "unit_measure": "EA", "description": "Hinge", "unit_cost": 10.5, "amount": 21},
    {"item_number": "HZ1048S8P", "quantity": 4, "unit_measure": "EA", "description": "Hinge pin", "unit_cost": 1.25, "amount": 5}
  ],
  "confidence": {"document_type": 0.97, "line_items": [{"item_number": 0.9}, {"item_number": 0.88}]}
}` + "\n```"

// fakeTokens hands out tok-N, bumping N on every invalidation.
type fakeTokens struct {
	mu          sync.Mutex
	gen         int
	invalidated int
	err         error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("tok-%d", f.gen), nil
}

func (f *fakeTokens) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.invalidated++
}

type extractCall struct {
	Token  string
	Prompt string
}

type harness struct {
	proc     *Processor
	docs     repository.DocumentRepository
	records  repository.RecordRepository
	feedback repository.FeedbackRepository
	blobs    *storage.FSStore
	tokens   *fakeTokens

	mu    sync.Mutex
	calls []extractCall
}

// newHarness wires a processor against sqlite, a temp dir and a fake model
// service. Classification always answers "Purchase Order"; extraction
// requests go to extract.
func newHarness(t *testing.T, extract func(w http.ResponseWriter, call extractCall, n int)) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenMemory(ctx, discard)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(discard) })

	blobs, err := storage.NewFSStore(t.TempDir(), discard)
	require.NoError(t, err)

	h := &harness{
		docs:     repository.NewDocumentRepository(db, discard),
		records:  repository.NewRecordRepository(db, discard),
		feedback: repository.NewFeedbackRepository(db, discard),
		blobs:    blobs,
		tokens:   &fakeTokens{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
			Messages  []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.MaxTokens == inference.ClassifyMaxTokens {
			writeReply(w, "Purchase Order")
			return
		}
		call := extractCall{
			Token:  strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
			Prompt: body.Messages[0].Content[0].Text,
		}
		h.mu.Lock()
		h.calls = append(h.calls, call)
		n := len(h.calls)
		h.mu.Unlock()
		extract(w, call, n)
	}))
	t.Cleanup(srv.Close)

	model := inference.NewClient(inference.Config{DeploymentURL: srv.URL, Timeout: 5 * time.Second}, discard)
	retriever := feedback.NewRetriever(h.feedback, nil, discard)
	prompts := inference.NewPromptBuilder(retriever, h.feedback, discard)
	h.proc = NewProcessor(discard, Config{}, h.docs, h.records, blobs, h.tokens, model, prompts)
	return h
}

func writeReply(w http.ResponseWriter, text string) {
	b, _ := json.Marshal(map[string]any{"content": []map[string]any{{"type": "text", "text": text}}})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (h *harness) upload(t *testing.T) *entity.Document {
	t.Helper()
	doc := &entity.Document{FileName: "po.png", MediaType: "image/png"}
	require.NoError(t, h.docs.Create(context.Background(), doc))
	data := []byte("\x89PNG fake image")
	require.NoError(t, h.blobs.Put(context.Background(), storage.KeyFor(doc.ID, doc.FileName), bytes.NewReader(data), int64(len(data)), doc.MediaType))
	return doc
}

func (h *harness) lineItems(t *testing.T, doc *entity.Document) []entity.LineItem {
	t.Helper()
	require.NotNil(t, doc.RunID)
	items, err := h.records.ListLineItems(context.Background(), doc.ID, *doc.RunID)
	require.NoError(t, err)
	return items
}

func TestProcessPurchaseOrder(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	doc := h.upload(t)

	got, err := h.proc.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.Equal(t, "Purchase Order", got.DocumentType)
	assert.Equal(t, "PO-1001", got.DocumentNumber)
	assert.False(t, got.NeedsReview)
	assert.NotNil(t, got.ProcessedAt)

	items := h.lineItems(t, got)
	require.Len(t, items, 2)
	assert.Equal(t, "HZ1048SS", items[0].ItemNumber)
	assert.Equal(t, "HZ1048S8P", items[1].ItemNumber)
	assert.Equal(t, 10.5, items[0].UnitCost)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(got.RawExtraction, &raw))
	assert.Equal(t, "Purchase Order", raw["document_type"])

	require.NotNil(t, got.VendorID)
	vendor, err := h.records.GetVendor(context.Background(), *got.VendorID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Supply", vendor.Name)

	require.Len(t, h.calls, 1)
	assert.Equal(t, inference.BaseExtractionPrompt, h.calls[0].Prompt)
}

func TestProcessUsesFeedback(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	ctx := context.Background()
	require.NoError(t, h.feedback.Add(ctx, &entity.FeedbackEntry{
		DocumentID: uuid.New(), DocumentType: "purchase order invoice",
		Comments: "item codes ending in SS were read as S8", ProblemFields: []string{"line_items"},
	}))
	require.NoError(t, h.feedback.Add(ctx, &entity.FeedbackEntry{
		DocumentID: uuid.New(), DocumentType: "Receipt", Comments: "receipt only",
	}))

	_, err := h.proc.Process(ctx, h.upload(t).ID)
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	prompt := h.calls[0].Prompt
	assert.True(t, strings.HasPrefix(prompt, inference.BaseExtractionPrompt))
	assert.Contains(t, prompt, "PREVIOUS FEEDBACK TO INCORPORATE:")
	assert.Contains(t, prompt, `Previous feedback noted: "item codes ending in SS were read as S8"`)
	assert.NotContains(t, prompt, "receipt only")
}

func TestProcessInferenceFailure(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"model overloaded"}`)
	})
	doc := h.upload(t)

	_, err := h.proc.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInference)

	got, err := h.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)

	var payload struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(got.RawExtraction, &payload))
	assert.NotEmpty(t, payload.Error)
	assert.Contains(t, payload.Error, "500")
	assert.Empty(t, h.lineItems(t, got))
	assert.Nil(t, got.VendorID)
}

func TestProcessRetriesOnceAfterUnauthorized(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, call extractCall, n int) {
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeReply(w, purchaseOrderReply)
	})

	got, err := h.proc.Process(context.Background(), h.upload(t).ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.Equal(t, 1, h.tokens.invalidated)
	require.Len(t, h.calls, 2)
	assert.Equal(t, "tok-0", h.calls[0].Token)
	assert.Equal(t, "tok-1", h.calls[1].Token)
}

func TestProcessGivesUpAfterSecondUnauthorized(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	doc := h.upload(t)

	_, err := h.proc.Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Len(t, h.calls, 2)

	got, err := h.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
}

func TestProcessDegradedOutputNeedsReview(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, "Sorry, the image is too blurry to read.")
	})

	got, err := h.proc.Process(context.Background(), h.upload(t).ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.True(t, got.NeedsReview)
	assert.Equal(t, "Purchase Order", got.DocumentType, "falls back to the classifier label")
	assert.JSONEq(t, `{"text":"Sorry, the image is too blurry to read."}`, string(got.RawExtraction))
	assert.Empty(t, h.lineItems(t, got))
}

func TestProcessSchemaMismatchNeedsReview(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, `{"document_type": "Invoice", "line_items": "see attached"}`)
	})

	got, err := h.proc.Process(context.Background(), h.upload(t).ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)
	assert.True(t, got.NeedsReview)
	assert.Empty(t, h.lineItems(t, got))
}

func TestProcessAuthFailure(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	h.tokens.err = common.AuthError("client secret is not configured", nil)
	doc := h.upload(t)

	_, err := h.proc.Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, common.ErrAuth)
	assert.Empty(t, h.calls)

	got, err := h.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
}

func TestProcessMissingBlob(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	doc := &entity.Document{FileName: "gone.pdf", MediaType: "application/pdf"}
	require.NoError(t, h.docs.Create(context.Background(), doc))

	_, err := h.proc.Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := h.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
}

func TestProcessRefusals(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	ctx := context.Background()

	_, err := h.proc.Process(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)

	doc := h.upload(t)
	_, err = h.docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)

	_, err = h.proc.Process(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrConflict)
	got, err := h.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status, "a refused run leaves the document alone")
}

// failingCompletion refuses every completion write with a store error.
type failingCompletion struct {
	repository.DocumentRepository
}

func (failingCompletion) Complete(context.Context, uuid.UUID, uuid.UUID, entity.Completion) error {
	return common.StoreError("complete document", errors.New("disk full"))
}

func TestProcessCompletionStoreErrorKeepsStatus(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	h.proc.Documents = failingCompletion{h.docs}
	doc := h.upload(t)

	_, err := h.proc.Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, common.ErrStore)

	got, err := h.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)
	assert.Empty(t, got.RawExtraction)
}

func TestProcessSupersededRunLeavesNewerRunAlone(t *testing.T) {
	ctx := context.Background()
	var (
		h     *harness
		docID uuid.UUID
		newer *entity.Document
	)
	h = newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		// the run is swept and restarted while the model is still answering
		ok, err := h.docs.ResetProcessing(ctx, docID)
		assert.NoError(t, err)
		assert.True(t, ok)
		next, err := h.docs.MarkProcessing(ctx, docID)
		assert.NoError(t, err)
		h.mu.Lock()
		newer = next
		h.mu.Unlock()
		writeReply(w, purchaseOrderReply)
	})
	docID = h.upload(t).ID

	_, err := h.proc.Process(ctx, docID)
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := h.docs.Get(ctx, docID)
	require.NoError(t, err)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotNil(t, newer)
	assert.Equal(t, constants.StatusProcessing, got.Status)
	assert.Equal(t, *newer.RunID, *got.RunID)
	assert.Nil(t, got.VendorID)
	assert.Empty(t, got.DocumentType)
	assert.Empty(t, h.lineItems(t, got))
}

func TestResetAndRerun(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	ctx := context.Background()
	doc := h.upload(t)

	_, err := h.proc.Reset(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = h.docs.MarkProcessing(ctx, doc.ID)
	require.NoError(t, err)

	reset, err := h.proc.Reset(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, reset.Status)

	got, err := h.proc.Process(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)

	// a second run from COMPLETED replaces the visible line items
	again, err := h.proc.Process(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, h.lineItems(t, again), 2)
}

func TestSweepStuck(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	ctx := context.Background()
	stuck := h.upload(t)
	idle := h.upload(t)
	_, err := h.docs.MarkProcessing(ctx, stuck.ID)
	require.NoError(t, err)

	n, err := h.proc.SweepStuck(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "recent runs are left alone")

	n, err = h.proc.SweepStuck(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.docs.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
	assert.Contains(t, string(got.RawExtraction), repository.InterruptedMessage)

	got, err = h.docs.Get(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUploaded, got.Status)
}

func TestProcessConcurrentRunsAreIndependent(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ extractCall, _ int) {
		writeReply(w, purchaseOrderReply)
	})
	docs := []*entity.Document{h.upload(t), h.upload(t), h.upload(t)}

	var wg sync.WaitGroup
	errs := make([]error, len(docs))
	for i, d := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.proc.Process(context.Background(), d.ID)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, d := range docs {
		got, err := h.docs.Get(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusCompleted, got.Status)
		assert.Len(t, h.lineItems(t, got), 2)
	}
}
