package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/gartstein/hiring/internal/hiring/models"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Bucket URL schemes accepted by OpenBucket.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobKey is the object that holds the collection inside the bucket.
const BlobKey = "jobs.json"

// BlobBackend keeps the collection as a single object in a bucket.
type BlobBackend struct {
	bucket *blob.Bucket
	key    string
	// mu serialises conditional writes from this process. Buckets have no
	// generic compare-and-swap, so writers in other processes can still race.
	mu     sync.Mutex
	logger *zap.Logger
}

// OpenBucket opens a bucket URL such as s3://name?region=eu-west-1,
// file:///var/lib/hiring or mem://.
func OpenBucket(ctx context.Context, url string) (*blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", url, err)
	}
	return bucket, nil
}

func NewBlobBackend(bucket *blob.Bucket, logger *zap.Logger) *BlobBackend {
	return &BlobBackend{
		bucket: bucket,
		key:    BlobKey,
		logger: logger.Named("blob_backend"),
	}
}

func (b *BlobBackend) Name() string { return "blob" }

func (b *BlobBackend) Load(ctx context.Context) (models.Collection, error) {
	data, err := b.bucket.ReadAll(ctx, b.key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return models.Collection{Jobs: []models.Job{}, Version: models.EmptyVersion}, nil
		}
		return models.Collection{}, fmt.Errorf("failed to read blob %s: %w", b.key, err)
	}
	return decodeLoaded(data)
}

func (b *BlobBackend) Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	data, version, err := encodeForSave(jobs)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if expectedVersion != "" {
		current, err := b.Load(ctx)
		if err != nil {
			return "", err
		}
		if err := checkVersion(current.Version, expectedVersion); err != nil {
			return "", err
		}
	}

	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := b.bucket.WriteAll(ctx, b.key, data, opts); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", b.key, err)
	}

	b.logger.Debug("collection written", zap.Int("jobs", len(jobs)), zap.String("version", version))
	return version, nil
}

func (b *BlobBackend) Close() error {
	return b.bucket.Close()
}
