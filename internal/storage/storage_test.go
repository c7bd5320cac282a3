package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestKeyFor(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.Equal(t, "document_0f8fad5b-d9cb-469f-a165-70867728950e.pdf", KeyFor(id, "Invoice 42.PDF"))
	assert.Equal(t, "document_0f8fad5b-d9cb-469f-a165-70867728950e.jpg", KeyFor(id, "scan.jpg"))
	assert.Equal(t, "document_0f8fad5b-d9cb-469f-a165-70867728950e", KeyFor(id, "noext"))
}

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFSStore(filepath.Join(dir, "uploads"), discard)
	require.NoError(t, err)

	data := []byte("%PDF-1.7 fake")
	key := KeyFor(uuid.New(), "a.pdf")
	require.NoError(t, s.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	entries, err := os.ReadDir(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFSStoreErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir(), discard)
	require.NoError(t, err)

	_, err = s.Get(ctx, "document_missing.png")
	assert.ErrorIs(t, err, common.ErrNotFound)

	for _, key := range []string{"", "../etc/passwd", "a/b", `a\b`} {
		assert.ErrorIs(t, s.Put(ctx, key, bytes.NewReader(nil), 0, ""), common.ErrInvalidInput, key)
		_, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, common.ErrInvalidInput, key)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), common.StorageConfig{Backend: "tape"}, discard)
	assert.Error(t, err)
}

func TestMinioStoreRoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := NewMinioStore(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "document-extractor-test",
	}, discard)
	require.NoError(t, err)

	key := KeyFor(uuid.New(), "x.png")
	require.NoError(t, s.Put(ctx, key, bytes.NewReader([]byte("png")), 3, "image/png"))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)

	_, err = s.Get(ctx, KeyFor(uuid.New(), "y.png"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}
