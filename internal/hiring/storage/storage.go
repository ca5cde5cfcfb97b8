// Package storage reads and writes the full job collection against one of
// several physical stores. Every write replaces the whole collection; a
// version token (the content hash of the stored array) lets callers make
// the replacement conditional.
package storage

import (
	"context"
	"fmt"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/models"
)

// Backend is one physical store of the job collection.
type Backend interface {
	Name() string
	// Load returns the stored collection. A store that was never written
	// returns an empty collection, not an error.
	Load(ctx context.Context) (models.Collection, error)
	// Save replaces the stored collection and returns the new version. A
	// non-empty expectedVersion makes the write conditional.
	Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error)
}

// encodeForSave validates and encodes jobs for a replacing write.
func encodeForSave(jobs []models.Job) ([]byte, string, error) {
	if err := models.ValidateJobs(jobs); err != nil {
		return nil, "", fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	data, err := models.Encode(jobs)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode jobs: %w", err)
	}
	return data, models.VersionOf(data), nil
}

// decodeLoaded parses stored bytes into a versioned collection.
func decodeLoaded(data []byte) (models.Collection, error) {
	jobs, err := models.Decode(data)
	if err != nil {
		return models.Collection{}, fmt.Errorf("stored collection is not a JSON array of jobs: %w", err)
	}
	if len(data) == 0 {
		return models.Collection{Jobs: jobs, Version: models.EmptyVersion}, nil
	}
	return models.Collection{Jobs: jobs, Version: models.VersionOf(data)}, nil
}

// checkVersion enforces compare-and-swap against the currently stored version.
func checkVersion(current, expected string) error {
	if expected != "" && expected != current {
		return fmt.Errorf("%w: expected %s, stored %s", e.ErrVersionConflict, short(expected), short(current))
	}
	return nil
}

func short(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}
