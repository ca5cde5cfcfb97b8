package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/hiring/internal/hiring/db"
	dbmodels "github.com/gartstein/hiring/internal/hiring/db/models"
	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/models"
	"go.uber.org/zap"
)

// CollectionRepository is the part of the database repository the backend uses.
type CollectionRepository interface {
	GetCollection(ctx context.Context, id string) (*dbmodels.JobCollection, error)
	SaveCollection(ctx context.Context, row *dbmodels.JobCollection, expectedVersion, emptyVersion string) error
}

var _ CollectionRepository = (*db.Repository)(nil)

// DatabaseBackend keeps the collection as one row of a SQL table. The
// conditional save is enforced by the database.
type DatabaseBackend struct {
	repo   CollectionRepository
	logger *zap.Logger
}

func NewDatabaseBackend(repo CollectionRepository, logger *zap.Logger) *DatabaseBackend {
	return &DatabaseBackend{
		repo:   repo,
		logger: logger.Named("database_backend"),
	}
}

func (b *DatabaseBackend) Name() string { return "database" }

func (b *DatabaseBackend) Load(ctx context.Context) (models.Collection, error) {
	row, err := b.repo.GetCollection(ctx, dbmodels.DefaultCollectionID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return models.Collection{Jobs: []models.Job{}, Version: models.EmptyVersion}, nil
		}
		return models.Collection{}, fmt.Errorf("failed to read collection row: %w", err)
	}
	return decodeLoaded([]byte(row.Data))
}

func (b *DatabaseBackend) Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	data, version, err := encodeForSave(jobs)
	if err != nil {
		return "", err
	}

	row := &dbmodels.JobCollection{
		ID:      dbmodels.DefaultCollectionID,
		Data:    string(data),
		Version: version,
		Count:   len(jobs),
	}
	if err := b.repo.SaveCollection(ctx, row, expectedVersion, models.EmptyVersion); err != nil {
		if errors.Is(err, e.ErrVersionConflict) {
			return "", fmt.Errorf("%w: expected %s", err, short(expectedVersion))
		}
		return "", fmt.Errorf("failed to write collection row: %w", err)
	}

	b.logger.Debug("collection written", zap.Int("jobs", len(jobs)), zap.String("version", version))
	return version, nil
}
