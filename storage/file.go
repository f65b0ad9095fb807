package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// FileEvidenceStore implements interfaces.EvidenceStore on the local file system.
type FileEvidenceStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileEvidenceStore creates a store rooted at baseDir, creating it if needed.
func NewFileEvidenceStore(baseDir string, log *slog.Logger) (*FileEvidenceStore, error) {
	if baseDir == "" {
		return nil, errors.New("empty evidence directory")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}

	return &FileEvidenceStore{
		baseDir: baseDir,
		log:     log,
	}, nil
}

// Put writes data to a file named after key.
func (s *FileEvidenceStore) Put(ctx context.Context, key string, data []byte) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}

	// Write to a temporary file first so a crash never leaves a partial blob.
	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write evidence: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close evidence file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to set evidence permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to store evidence: %w", err)
	}

	s.log.Debug("Stored evidence in file",
		slog.String("key", key),
		slog.Int("size", len(data)))

	return nil
}

// Get reads the blob stored under key.
func (s *FileEvidenceStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, interfaces.ErrEvidenceNotFound
		}
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}

	s.log.Debug("Fetched evidence from file",
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Delete removes the blob stored under key.
func (s *FileEvidenceStore) Delete(ctx context.Context, key string) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete evidence: %w", err)
	}
	return nil
}

// Name returns a unique identifier for this store.
func (s *FileEvidenceStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

func (s *FileEvidenceStore) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, clean), nil
}
