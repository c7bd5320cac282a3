package async

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

const TaskTypeProcessDocument = "document:process"

const queueName = "documents"

// AsynqQueue hands jobs to a Redis-backed asynq queue.
type AsynqQueue struct {
	client  *asynq.Client
	logger  *slog.Logger
	timeout time.Duration
}

func redisOpt(cfg common.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func NewAsynqQueue(redis common.RedisConfig, timeout time.Duration, logger *slog.Logger) *AsynqQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &AsynqQueue{client: asynq.NewClient(redisOpt(redis)), logger: logger, timeout: timeout}
}

// NewProcessTask encodes job as an asynq task.
func NewProcessTask(job Job, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return asynq.NewTask(TaskTypeProcessDocument, payload, processTaskOptions(timeout)...), nil
}

// processTaskOptions never retries: HandleProcess records failures on the
// document and answers SkipRetry.
func processTaskOptions(timeout time.Duration) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	task, err := NewProcessTask(job, q.timeout)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue document %s: %w", job.DocumentID, err)
	}
	q.logger.Info("queued document for processing", "document_id", job.DocumentID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Shutdown closes the client; the worker drains on its own.
func (q *AsynqQueue) Shutdown(context.Context) {
	if err := q.client.Close(); err != nil {
		q.logger.Warn("close asynq client", "error", err)
	}
}

// AsynqWorker consumes process tasks and runs them through a Processor.
type AsynqWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	proc   Processor
	logger *slog.Logger
}

func NewAsynqWorker(redis common.RedisConfig, concurrency int, proc Processor, logger *slog.Logger) *AsynqWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	server := asynq.NewServer(redisOpt(redis), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return time.Duration(n*n+1) * 5 * time.Second
		},
		Logger: newAsynqLogger(logger),
	})
	w := &AsynqWorker{server: server, mux: asynq.NewServeMux(), proc: proc, logger: logger}
	w.mux.HandleFunc(TaskTypeProcessDocument, w.HandleProcess)
	return w
}

// Start begins consuming in the background.
func (w *AsynqWorker) Start() error {
	return w.server.Start(w.mux)
}

func (w *AsynqWorker) Shutdown() {
	w.server.Shutdown()
}

// HandleProcess runs one task. Every pipeline failure has already been
// recorded on the document, so none of them are retried.
func (w *AsynqWorker) HandleProcess(ctx context.Context, t *asynq.Task) error {
	var job Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}
	start := time.Now()
	if _, err := w.proc.Process(ctx, job.DocumentID); err != nil {
		w.logger.Error("processing failed", "document_id", job.DocumentID, "error", err)
		return fmt.Errorf("process %s: %v: %w", job.DocumentID, err, asynq.SkipRetry)
	}
	w.logger.Info("processed document",
		"document_id", job.DocumentID,
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct{ l *slog.Logger }

func newAsynqLogger(l *slog.Logger) asynqLogger { return asynqLogger{l: l.With("component", "asynq")} }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
