// Package documents owns upload and read access to documents and their
// extracted records.
package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
	"github.com/joseph-ayodele/document-extractor/internal/storage"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

type Service struct {
	docs    repository.DocumentRepository
	records repository.RecordRepository
	blobs   storage.BlobStore
	logger  *slog.Logger
}

func NewService(docs repository.DocumentRepository, records repository.RecordRepository, blobs storage.BlobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, records: records, blobs: blobs, logger: logger}
}

// Upload is one file handed to the service.
type Upload struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// Upload stores the bytes under KeyFor(id, name) and then creates the
// document row in UPLOADED.
func (s *Service) Upload(ctx context.Context, up Upload) (*entity.Document, error) {
	name := filepath.Base(strings.TrimSpace(up.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, common.InvalidInput("file name is required")
	}
	mediaType, ok := constants.MediaTypeForExt(filepath.Ext(name))
	if !ok {
		return nil, common.InvalidInput(fmt.Sprintf("unsupported file type %q: allowed are jpeg, jpg, png, pdf", filepath.Ext(name)))
	}
	if up.Size <= 0 {
		return nil, common.InvalidInput("file is empty")
	}
	if up.Size > constants.MaxUploadBytes {
		return nil, common.InvalidInput(fmt.Sprintf("file is %d bytes; the limit is %d", up.Size, constants.MaxUploadBytes))
	}

	doc := &entity.Document{
		ID:         uuid.New(),
		FileName:   name,
		MediaType:  mediaType,
		UploadedAt: time.Now().UTC(),
		Status:     constants.StatusUploaded,
	}
	key := storage.KeyFor(doc.ID, name)
	if err := s.blobs.Put(ctx, key, io.LimitReader(up.Body, up.Size), up.Size, mediaType); err != nil {
		s.logger.Error("upload.blob_failed", "document_id", doc.ID, "key", key, "error", err)
		return nil, err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("upload.ok", "document_id", doc.ID, "file_name", name, "size", up.Size)
	return doc, nil
}

// Detail returns the document with its linked records and the line items
// of its latest run.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (*entity.DocumentDetail, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &entity.DocumentDetail{Document: *doc, LineItems: []entity.LineItem{}}

	if doc.VendorID != nil {
		if detail.Vendor, err = s.records.GetVendor(ctx, *doc.VendorID); err != nil {
			return nil, err
		}
	}
	if doc.CustomerID != nil {
		if detail.Customer, err = s.records.GetCustomer(ctx, *doc.CustomerID); err != nil {
			return nil, err
		}
	}
	if doc.PaymentID != nil {
		if detail.Payment, err = s.records.GetPayment(ctx, *doc.PaymentID); err != nil {
			return nil, err
		}
	}
	if doc.RunID != nil {
		items, err := s.records.ListLineItems(ctx, id, *doc.RunID)
		if err != nil {
			return nil, err
		}
		if items != nil {
			detail.LineItems = items
		}
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]entity.Document, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	docs, err := s.docs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []entity.Document{}
	}
	return docs, nil
}

// ListDetails resolves Detail for the most recent documents.
func (s *Service) ListDetails(ctx context.Context, limit int) ([]entity.DocumentDetail, error) {
	docs, err := s.docs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entity.DocumentDetail, 0, len(docs))
	for _, d := range docs {
		detail, err := s.Detail(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *detail)
	}
	return out, nil
}
