package storage

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/models"
	"go.uber.org/zap"
)

// Chain is a ranked list of backends. Reads poll the backends in priority
// order and the first success wins; writes go to the first backend only.
type Chain struct {
	backends []Backend
	logger   *zap.Logger
}

// NewChain builds a chain; the first backend is the primary.
func NewChain(logger *zap.Logger, backends ...Backend) *Chain {
	return &Chain{
		backends: backends,
		logger:   logger.Named("storage"),
	}
}

func (c *Chain) Name() string {
	if len(c.backends) == 0 {
		return "none"
	}
	return c.backends[0].Name()
}

// Backends returns the names of the backends in priority order.
func (c *Chain) Backends() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name())
	}
	return names
}

// Load never fails: when every backend errors it returns an empty collection
// so readers keep working while storage is degraded. Anything not read from
// the primary is marked Degraded.
func (c *Chain) Load(ctx context.Context) (models.Collection, error) {
	for i, b := range c.backends {
		col, err := b.Load(ctx)
		if err != nil {
			c.logger.Warn("Backend load failed",
				zap.String("backend", b.Name()),
				zap.Int("rank", i),
				zap.Error(err),
			)
			continue
		}
		if i > 0 {
			c.logger.Warn("Serving collection from fallback backend",
				zap.String("backend", b.Name()),
				zap.Int("jobs", len(col.Jobs)),
			)
			col.Degraded = true
		}
		return col, nil
	}

	c.logger.Error("All backends failed, serving empty collection",
		zap.Strings("backends", c.Backends()),
	)
	return models.Collection{Jobs: []models.Job{}, Version: models.EmptyVersion, Degraded: true}, nil
}

// Save replaces the collection in the primary backend. Failures are always
// returned to the caller.
func (c *Chain) Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	if len(c.backends) == 0 {
		return "", fmt.Errorf("%w: no backend configured", e.ErrStorageUnavailable)
	}
	primary := c.backends[0]

	version, err := primary.Save(ctx, jobs, expectedVersion)
	if err != nil {
		c.logger.Error("Backend save failed",
			zap.String("backend", primary.Name()),
			zap.Int("jobs", len(jobs)),
			zap.Error(err),
		)
		switch {
		case errors.Is(err, e.ErrVersionConflict), errors.Is(err, e.ErrInvalidInput):
			return "", err
		default:
			return "", fmt.Errorf("%w: %s: %v", e.ErrStorageUnavailable, primary.Name(), err)
		}
	}
	return version, nil
}
