package memory

import (
	"context"
	"sort"
	"sync"

	"velora-scenario-service/internal/domain"
)

// ProgressStore keeps one progress row per (user, question) in memory.
type ProgressStore struct {
	catalog *StaticCatalog

	mu   sync.RWMutex
	rows map[progressKey]domain.Progress
}

type progressKey struct {
	userID     string
	questionID string
}

// NewProgressStore uses catalog, when non-nil, to enrich listed rows.
func NewProgressStore(catalog *StaticCatalog) *ProgressStore {
	return &ProgressStore{catalog: catalog, rows: make(map[progressKey]domain.Progress)}
}

func (s *ProgressStore) Upsert(_ context.Context, progress domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[progressKey{userID: progress.UserID, questionID: progress.QuestionID}] = progress
	return nil
}

func (s *ProgressStore) ListProgress(_ context.Context, userID string) ([]domain.ProgressEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProgressEntry, 0)
	for key, row := range s.rows {
		if key.userID != userID {
			continue
		}
		if s.catalog != nil {
			out = append(out, s.catalog.entryFor(row))
		} else {
			out = append(out, domain.ProgressEntry{Progress: row})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AnsweredAt.After(out[j].AnsweredAt)
	})
	return out, nil
}

// Len reports how many rows are stored.
func (s *ProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
