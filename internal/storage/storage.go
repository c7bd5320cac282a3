// Package storage keeps the bytes of uploaded documents.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// Backend names accepted by New.
const (
	BackendFS    = "fs"
	BackendMinio = "minio"
	BackendS3    = "s3"
)

// BlobStore stores document bytes under flat keys.
// Get returns an error wrapping common.ErrNotFound for unknown keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// KeyFor names the blob of a document: document_{id}{ext}.
func KeyFor(id uuid.UUID, fileName string) string {
	ext := constants.NormalizeExt(filepath.Ext(fileName))
	if ext == "" {
		return "document_" + id.String()
	}
	return "document_" + id.String() + "." + ext
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return common.InvalidInput(fmt.Sprintf("invalid blob key %q", key))
	}
	return nil
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case BackendFS, "":
		return NewFSStore(cfg.Dir, logger)
	case BackendMinio:
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
	case BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func readAllLimited(r io.Reader) ([]byte, error) {
	// uploads are capped well below this
	const limit = 4 * constants.MaxUploadBytes
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if len(b) > limit {
		return nil, fmt.Errorf("blob exceeds %d bytes", limit)
	}
	return b, nil
}
