package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/domain"
)

func TestAsyncProgressWriterRetriesThenWrites(t *testing.T) {
	store := &flakyStore{failures: 2}
	writer := app.NewAsyncProgressWriter(store, nil, 4, 3, time.Millisecond)

	if err := writer.Upsert(context.Background(), domain.Progress{UserID: "u1", QuestionID: "q1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if store.attempts() != 3 || len(store.written()) != 1 {
		t.Fatalf("expected 3 attempts and one write, got attempts=%d written=%d", store.attempts(), len(store.written()))
	}
}

func TestAsyncProgressWriterGivesUp(t *testing.T) {
	store := &flakyStore{failures: 10}
	writer := app.NewAsyncProgressWriter(store, nil, 4, 2, 0)

	_ = writer.Upsert(context.Background(), domain.Progress{UserID: "u1", QuestionID: "q1"})
	_ = writer.Close(context.Background())

	if store.attempts() != 2 || len(store.written()) != 0 {
		t.Fatalf("expected 2 attempts and nothing written, got attempts=%d written=%d", store.attempts(), len(store.written()))
	}
}

func TestAsyncProgressWriterRejectsAfterClose(t *testing.T) {
	writer := app.NewAsyncProgressWriter(&flakyStore{}, nil, 1, 1, 0)
	_ = writer.Close(context.Background())

	err := writer.Upsert(context.Background(), domain.Progress{UserID: "u1"})
	if !errors.Is(err, app.ErrProgressWriterClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

type flakyStore struct {
	mu       sync.Mutex
	failures int
	tries    int
	rows     []domain.Progress
}

func (s *flakyStore) Upsert(_ context.Context, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if s.tries <= s.failures {
		return errors.New("temporary failure")
	}
	s.rows = append(s.rows, p)
	return nil
}

func (s *flakyStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tries
}

func (s *flakyStore) written() []domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Progress(nil), s.rows...)
}
