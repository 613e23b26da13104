package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	filePrefix = "checkpoint_"
	fileSuffix = ".json"
)

// FileStore keeps one JSON file per checkpoint in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store in dir.
// If dir is empty, uses os.TempDir()/kgembed-checkpoints
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "kgembed-checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path for a checkpoint name.
func (s *FileStore) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.dir, filePrefix+name+fileSuffix)
	if !isPathWithinDirectory(fullPath, s.dir) {
		return "", ErrInvalidName
	}
	return fullPath, nil
}

// Put writes to a temporary file first, then renames it into place.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// Names lists checkpoint names in lexical order. Temporary files are skipped.
func (s *FileStore) Names(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()
		if !strings.HasPrefix(file, filePrefix) || !strings.HasSuffix(file, fileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(file, filePrefix), fileSuffix))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Close() error { return nil }
