package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// Storage keeps scan payloads on the local filesystem under one base
// directory. Keys may contain slashes for grouping page images per document;
// every key stays confined to the base directory.
type Storage struct {
	baseDir string
}

func New(baseDir string) (*Storage, error) {
	if baseDir == "" {
		baseDir = "./data/scans"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scan storage dir: %w", err)
	}
	return &Storage{baseDir: baseDir}, nil
}

// Save writes through a temp file and renames, so a crashed upload never
// leaves a half-written payload behind a valid key.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create scan dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create scan file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("write scan payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush scan payload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store scan payload: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open scan payload", err)
	}
	if err != nil {
		return nil, fmt.Errorf("open scan payload: %w", err)
	}
	return f, nil
}

func (s *Storage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(key))
	if cleaned == "" || cleaned == "." || filepath.IsAbs(cleaned) ||
		cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve scan key", fmt.Errorf("unsafe key %q", key))
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
