package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Object is an opened stored answer. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Sink stores recorded answers and serves them back under URLs starting
// with Prefix.
type Sink interface {
	Name() string
	// Local reports whether answers live on this server's disk.
	Local() bool
	Prefix() string
	Write(ctx context.Context, name, contentType string, data []byte) error
	// Open returns ErrMediaNotFound for names that were never written.
	Open(ctx context.Context, name string) (*Object, error)
}

// validName rejects names that could escape the sink's namespace.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid media name %q", e.ErrInvalidInput, name)
	}
	return nil
}

// LocalSink keeps answers in a directory served under /uploads/.
type LocalSink struct {
	dir string
}

func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

func (s *LocalSink) Name() string   { return "local" }
func (s *LocalSink) Local() bool    { return true }
func (s *LocalSink) Prefix() string { return "/uploads/" }

func (s *LocalSink) Write(_ context.Context, name, _ string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *LocalSink) Open(_ context.Context, name string) (*Object, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", e.ErrMediaNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Object{Body: f, Size: info.Size(), ContentType: ContentTypeOf(name)}, nil
}

// BlobSink keeps answers in an object store bucket served under /media/.
type BlobSink struct {
	bucket    *blob.Bucket
	keyPrefix string
}

// NewBlobSink stores answers under keyPrefix inside bucket.
func NewBlobSink(bucket *blob.Bucket, keyPrefix string) *BlobSink {
	return &BlobSink{bucket: bucket, keyPrefix: keyPrefix}
}

func (s *BlobSink) Name() string   { return "blob" }
func (s *BlobSink) Local() bool    { return false }
func (s *BlobSink) Prefix() string { return "/media/" }

func (s *BlobSink) Write(ctx context.Context, name, contentType string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	err := s.bucket.WriteAll(ctx, s.keyPrefix+name, data, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

func (s *BlobSink) Open(ctx context.Context, name string) (*Object, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	r, err := s.bucket.NewReader(ctx, s.keyPrefix+name, nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", e.ErrMediaNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	contentType := r.ContentType()
	if contentType == "" {
		contentType = ContentTypeOf(name)
	}
	return &Object{Body: r, Size: r.Size(), ContentType: contentType}, nil
}
