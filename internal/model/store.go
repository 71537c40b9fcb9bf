// Package model persists the fitted model as a human-readable JSON artifact
// on disk. The artifact is the single shared mutable resource between the
// estimation pipeline (writer) and the live monitor (reader), so saves are
// atomic: write to a temp file in the same directory, then rename.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// FileStore implements domain.ModelStore on the local filesystem.
type FileStore struct {
	path string

	// rename is swappable in tests to simulate a crash between the temp
	// write and the rename.
	rename func(oldpath, newpath string) error
}

// NewFileStore creates a FileStore persisting to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		rename: os.Rename,
	}
}

// Path returns the artifact location.
func (s *FileStore) Path() string {
	return s.path
}

// Save atomically replaces the persisted artifact. The model is validated
// before anything touches the disk; an invalid model must never supersede a
// valid artifact.
func (s *FileStore) Save(ctx context.Context, m domain.FittedModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("model: refusing to save: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("model: marshal artifact: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("model: create artifact dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("model: create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("model: write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("model: sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("model: close temp artifact: %w", err)
	}

	if err := s.rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("model: replace artifact: %w", err)
	}
	return nil
}

// Load reads and re-validates the persisted artifact. It returns ErrNotFound
// when no artifact exists and ErrCorruptModel when the artifact cannot be
// decoded or fails invariant checks. Callers starting the live monitor must
// treat both as fatal; there is no sensible default model.
func (s *FileStore) Load(ctx context.Context) (domain.FittedModel, error) {
	if err := ctx.Err(); err != nil {
		return domain.FittedModel{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.FittedModel{}, fmt.Errorf("model: no artifact at %s: %w", s.path, domain.ErrNotFound)
		}
		return domain.FittedModel{}, fmt.Errorf("model: read artifact %s: %w", s.path, err)
	}

	var m domain.FittedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.FittedModel{}, fmt.Errorf("model: decode artifact %s: %v: %w", s.path, err, domain.ErrCorruptModel)
	}
	if err := m.Validate(); err != nil {
		return domain.FittedModel{}, fmt.Errorf("model: artifact %s: %w", s.path, err)
	}
	return m, nil
}

// Compile-time interface check.
var _ domain.ModelStore = (*FileStore)(nil)
