package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local stores blobs on the filesystem under a base directory. URLs are
// relative; the HTTP layer serves them from /files/.
type Local struct {
	baseDir string
}

func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

func (l *Local) BaseDir() string {
	return l.baseDir
}

func (l *Local) Save(ctx context.Context, data []byte, category string, ownerID uuid.UUID, filename string) (string, error) {
	p := blobPath(category, ownerID, filename)
	full := filepath.Join(l.baseDir, filepath.FromSlash(p))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return p, nil
}

func (l *Local) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.baseDir, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	return data, nil
}

func (l *Local) Delete(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(l.baseDir, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", path, err)
	}
	return nil
}

func (l *Local) URL(path string) string {
	return "/files/" + path
}

func (l *Local) LocalPath(ctx context.Context, path string) (string, func(), error) {
	full := filepath.Join(l.baseDir, filepath.FromSlash(path))
	if _, err := os.Stat(full); err != nil {
		return "", nil, fmt.Errorf("blob %s not on disk: %w", path, err)
	}
	return full, func() {}, nil
}
