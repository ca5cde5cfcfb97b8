package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gartstein/hiring/internal/hiring/db"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
)

// Kind identifies a backend implementation.
type Kind string

const (
	KindFile     Kind = "file"
	KindBlob     Kind = "blob"
	KindDatabase Kind = "database"
	KindSnapshot Kind = "snapshot"
)

// Signals are the deployment facts that decide which backends are used.
type Signals struct {
	// BlobURL is the object-store credential/location. Presence selects the
	// object store as primary.
	BlobURL     string
	DatabaseDSN string
	// Serverless marks an execution environment without a durable local disk.
	Serverless bool
	// Snapshot is the disaster-recovery JSON copy of the collection.
	Snapshot string
}

// Plan returns the backends to use in priority order.
func Plan(s Signals) []Kind {
	var plan []Kind
	switch {
	case s.BlobURL != "":
		plan = append(plan, KindBlob)
	case s.DatabaseDSN != "":
		plan = append(plan, KindDatabase)
	default:
		return []Kind{KindFile}
	}
	if s.Snapshot != "" {
		plan = append(plan, KindSnapshot)
	}
	return plan
}

// Options configures Open.
type Options struct {
	Signals Signals
	DataDir string
}

// Open builds the chain described by Plan. The returned closer releases
// bucket and database handles.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Chain, func() error, error) {
	var (
		backends []Backend
		closers  []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	for _, kind := range Plan(opts.Signals) {
		switch kind {
		case KindFile:
			dir := opts.DataDir
			if opts.Signals.Serverless {
				dir = filepath.Join(os.TempDir(), "hiring")
				logger.Warn("Serverless environment without object store, collection is not durable",
					zap.String("dir", dir))
			}
			backends = append(backends, NewFileBackend(dir, logger))
		case KindBlob:
			bucket, err := OpenBucket(ctx, opts.Signals.BlobURL)
			if err != nil {
				return nil, nil, errors.Join(err, closeAll())
			}
			closers = append(closers, bucket.Close)
			backends = append(backends, NewBlobBackend(bucket, logger))
		case KindDatabase:
			repo, err := openRepository(opts.Signals.DatabaseDSN)
			if err != nil {
				return nil, nil, errors.Join(err, closeAll())
			}
			closers = append(closers, repo.Close)
			backends = append(backends, NewDatabaseBackend(repo, logger))
		case KindSnapshot:
			backends = append(backends, NewSnapshotBackend(opts.Signals.Snapshot))
		default:
			return nil, nil, fmt.Errorf("unknown backend kind %q", kind)
		}
	}

	chain := NewChain(logger, backends...)
	logger.Info("Storage configured", zap.Strings("backends", chain.Backends()))
	return chain, closeAll, nil
}

// openRepository accepts a postgres DSN or sqlite://<path> for single-node setups.
func openRepository(dsn string) (*db.Repository, error) {
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return db.Open(sqlite.Open(path))
	}
	return db.NewRepository(&db.Config{DSN: dsn})
}
