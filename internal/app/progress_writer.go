package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/logger"
)

// ErrProgressQueueFull is returned when the writer cannot accept more records.
var ErrProgressQueueFull = errors.New("progress queue full")

// ErrProgressWriterClosed is returned for records offered after Close.
var ErrProgressWriterClosed = errors.New("progress writer closed")

// AsyncProgressWriter queues progress upserts and writes them on a background
// worker with bounded retries.
type AsyncProgressWriter struct {
	store    ProgressStore
	log      *logger.Logger
	attempts int
	backoff  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Progress
	done   chan struct{}
}

// NewAsyncProgressWriter starts the worker. attempts < 1 means a single try.
func NewAsyncProgressWriter(store ProgressStore, log *logger.Logger, size, attempts int, backoff time.Duration) *AsyncProgressWriter {
	if size <= 0 {
		size = 64
	}
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	w := &AsyncProgressWriter{
		store:    store,
		log:      log.With("component", "progress_writer"),
		attempts: attempts,
		backoff:  backoff,
		queue:    make(chan domain.Progress, size),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Upsert enqueues the record and returns immediately.
func (w *AsyncProgressWriter) Upsert(_ context.Context, progress domain.Progress) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrProgressWriterClosed
	}
	select {
	case w.queue <- progress:
		return nil
	default:
		return ErrProgressQueueFull
	}
}

// Close stops accepting records and waits until queued ones are written or ctx ends.
func (w *AsyncProgressWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncProgressWriter) run() {
	defer close(w.done)
	for record := range w.queue {
		w.write(record)
	}
}

func (w *AsyncProgressWriter) write(record domain.Progress) {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err = w.store.Upsert(context.Background(), record); err == nil {
			return
		}
		if attempt < w.attempts && w.backoff > 0 {
			time.Sleep(w.backoff * time.Duration(attempt))
		}
	}
	w.log.Error("dropping progress record after retries",
		"user_id", record.UserID,
		"question_id", record.QuestionID,
		"attempts", w.attempts,
		"error", err,
	)
}
