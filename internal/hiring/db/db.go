package db

import (
	"context"
	"errors"
	"fmt"

	dbmodels "github.com/gartstein/hiring/internal/hiring/db/models"
	e "github.com/gartstein/hiring/internal/hiring/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	// DSN takes precedence over the individual connection fields.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c *Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func NewRepository(cfg *Config) (*Repository, error) {
	return Open(postgres.Open(cfg.dsn()))
}

// Open connects through any gorm dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&dbmodels.JobCollection{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) GetCollection(ctx context.Context, id string) (*dbmodels.JobCollection, error) {
	var row dbmodels.JobCollection
	result := r.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &row, nil
}

// SaveCollection replaces the stored document. When expectedVersion is set
// the write only succeeds if the stored version still matches it; a missing
// row matches emptyVersion.
func (r *Repository) SaveCollection(ctx context.Context, row *dbmodels.JobCollection, expectedVersion, emptyVersion string) error {
	return r.WithTransaction(ctx, func(repo *Repository) error {
		current, err := repo.GetCollection(ctx, row.ID)
		if err != nil && !errors.Is(err, e.ErrNotFound) {
			return err
		}

		if current == nil {
			if expectedVersion != "" && expectedVersion != emptyVersion {
				return e.ErrVersionConflict
			}
			result := repo.db.WithContext(ctx).Create(row)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
					return e.ErrVersionConflict
				}
				return result.Error
			}
			return nil
		}

		if expectedVersion != "" && current.Version != expectedVersion {
			return e.ErrVersionConflict
		}
		result := repo.db.WithContext(ctx).Model(&dbmodels.JobCollection{}).
			Where("id = ? AND version = ?", row.ID, current.Version).
			Updates(map[string]interface{}{
				"data":    row.Data,
				"version": row.Version,
				"count":   row.Count,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrVersionConflict
		}
		return nil
	})
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
