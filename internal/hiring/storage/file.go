package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gartstein/hiring/internal/hiring/models"
	"go.uber.org/zap"
)

const collectionFile = "jobs.json"

// FileBackend keeps the collection in a local JSON file.
type FileBackend struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewFileBackend(dir string, logger *zap.Logger) *FileBackend {
	return &FileBackend{
		dir:    dir,
		logger: logger.Named("file_backend"),
	}
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) path() string { return filepath.Join(b.dir, collectionFile) }

func (b *FileBackend) Load(_ context.Context) (models.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

func (b *FileBackend) load() (models.Collection, error) {
	data, err := os.ReadFile(b.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Collection{Jobs: []models.Job{}, Version: models.EmptyVersion}, nil
		}
		return models.Collection{}, fmt.Errorf("failed to read %s: %w", b.path(), err)
	}
	return decodeLoaded(data)
}

// Save writes to a temporary file and renames it over the collection, so a
// reader sees either the old or the new array.
func (b *FileBackend) Save(_ context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	data, version, err := encodeForSave(jobs)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if expectedVersion != "" {
		current, err := b.load()
		if err != nil {
			return "", err
		}
		if err := checkVersion(current.Version, expectedVersion); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", b.dir, err)
	}
	tmp, err := os.CreateTemp(b.dir, collectionFile+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path()); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", b.path(), err)
	}

	b.logger.Debug("collection written", zap.Int("jobs", len(jobs)), zap.String("version", version))
	return version, nil
}
