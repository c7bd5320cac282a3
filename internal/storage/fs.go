package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// FSStore keeps blobs as files in one directory.
type FSStore struct {
	dir    string
	logger *slog.Logger
}

func NewFSStore(dir string, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &FSStore{dir: dir, logger: logger}, nil
}

// Put writes through a temp file and renames, so readers never see a partial blob.
func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := validKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return common.StoreError("create temp file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return common.StoreError("write blob "+key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return common.StoreError("commit blob "+key, err)
	}
	s.logger.Info("blob stored", "backend", BackendFS, "key", key, "bytes", n)
	return nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFound(fmt.Sprintf("blob %s not found", key))
	}
	if err != nil {
		return nil, common.StoreError("open blob "+key, err)
	}
	defer f.Close()
	b, err := readAllLimited(f)
	if err != nil {
		return nil, common.StoreError("read blob "+key, err)
	}
	return b, nil
}
