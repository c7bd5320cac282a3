package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/documents"
)

// Inbox uploads files that appear in a directory and queues them for
// processing. Uploaded files are moved into a hidden .ingested folder so a
// restart does not pick them up again.
type Inbox struct {
	dir      string
	debounce time.Duration
	uploader Uploader
	queue    async.Queue
	logger   *slog.Logger
}

func NewInbox(cfg common.InboxConfig, uploader Uploader, queue async.Queue, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{dir: cfg.Dir, debounce: cfg.Debounce, uploader: uploader, queue: queue, logger: logger}
}

// Run watches the inbox until ctx is done.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(in.dir, ingestedDir), 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{in.dir},
		InitialScan: true,
		Debounce:    in.debounce,
	}, in.logger)
	if err != nil {
		return err
	}
	in.logger.Info("inbox.watching", "dir", in.dir)

	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			in.Ingest(ctx, path)
		case err, ok := <-errs:
			if ok {
				in.logger.Warn("inbox.watch_error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}

// Ingest uploads one file, queues it, and moves it out of the inbox.
func (in *Inbox) Ingest(ctx context.Context, path string) Result {
	res := Result{SourcePath: path}
	fail := func(stage string, err error) Result {
		in.logger.Error("inbox.ingest_failed", "path", path, "stage", stage, "error", err)
		res.Err = err.Error()
		return res
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already moved by an earlier event for the same file.
			return res
		}
		return fail("open", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fail("stat", err)
	}
	doc, err := in.uploader.Upload(ctx, documents.Upload{
		FileName: filepath.Base(path),
		Size:     info.Size(),
		Body:     f,
	})
	_ = f.Close()
	if err != nil {
		return fail("upload", err)
	}
	res.DocumentID = doc.ID.String()

	dest := filepath.Join(in.dir, ingestedDir, doc.ID.String()+"_"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		in.logger.Warn("inbox.move_failed", "path", path, "error", err)
	}

	if err := in.queue.Enqueue(ctx, async.Job{
		DocumentID:  doc.ID,
		SubmittedAt: time.Now(),
		RequestID:   "inbox-" + doc.ID.String(),
	}); err != nil {
		return fail("enqueue", err)
	}
	res.Queued = true
	in.logger.Info("inbox.ingested", "path", path, "document_id", doc.ID)
	return res
}
