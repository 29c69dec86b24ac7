package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileQuota persists the anonymous submission count for this machine in a small
// YAML file, so the gate survives restarts of the terminal player.
type FileQuota struct {
	path string
	mu   sync.Mutex
}

type quotaFile struct {
	AnonymousCount int `yaml:"velora_anon_count"`
}

func NewFileQuota(path string) *FileQuota {
	return &FileQuota{path: path}
}

// DefaultQuotaPath is the per-user location used when none is configured.
func DefaultQuotaPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "velora", "quota.yaml"), nil
}

func (q *FileQuota) Count(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read()
}

func (q *FileQuota) IncrementAndRead(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.read()
	if err != nil {
		return 0, err
	}
	n++
	if err := q.write(n); err != nil {
		return 0, err
	}
	return n, nil
}

// read treats a missing or unreadable file as a zero count.
func (q *FileQuota) read() (int, error) {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota file: %w", err)
	}
	var f quotaFile
	if err := yaml.Unmarshal(data, &f); err != nil || f.AnonymousCount < 0 {
		return 0, nil
	}
	return f.AnonymousCount, nil
}

func (q *FileQuota) write(n int) error {
	data, err := yaml.Marshal(quotaFile{AnonymousCount: n})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return fmt.Errorf("create quota dir: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write quota file: %w", err)
	}
	return os.Rename(tmp, q.path)
}
