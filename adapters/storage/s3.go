package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/utils"
)

// ErrObjectNotFound is returned by S3Client implementations for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// S3Client is the part of an S3 client the store needs.  Wrap an
// aws-sdk-go-v2 or minio client to satisfy it; implementations should return
// an error wrapping ErrObjectNotFound for a missing key.
type S3Client interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

var _ core.MediaStore = (*S3)(nil)

// S3 serves media objects from one bucket of an S3-compatible store.
type S3 struct {
	client    S3Client
	bucket    string
	prefix    string
	maxBytes  int64
	chunkSize int
}

// NewS3 creates an S3 store.  client must not be nil.
func NewS3(client S3Client, bucket, prefix string, maxBytes int64, chunkSize int) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}
	return &S3{client: client, bucket: bucket, prefix: prefix, maxBytes: maxBytes, chunkSize: chunkSize}, nil
}

func (s *S3) key(fileID string) string {
	if s.prefix == "" {
		return fileID
	}
	return path.Join(s.prefix, fileID)
}

// GetBytes downloads the object for fileID.  Client failures other than a
// missing key are transient.
func (s *S3) GetBytes(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Storage("s3.get", err)
	}
	if fileID == "" {
		return nil, apperrors.InvalidInput("s3.get", fmt.Errorf("empty file id"))
	}

	rc, err := s.client.GetObject(ctx, s.bucket, s.key(fileID))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, apperrors.NotFound("s3.get", fmt.Errorf("%w: %s", apperrors.ErrNotFound, fileID))
	}
	if err != nil {
		return nil, apperrors.Transient("s3.get", err)
	}
	defer rc.Close()

	data, err := utils.ReadAll(ctx, rc, s.maxBytes, s.chunkSize)
	if errors.Is(err, utils.ErrTooLarge) {
		return nil, apperrors.InvalidInput("s3.get", fmt.Errorf("%w: %s", apperrors.ErrInputTooLarge, fileID))
	}
	if err != nil {
		return nil, apperrors.Transient("s3.get.read", err)
	}
	return data, nil
}
