package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/stockwise/internal/config"
)

var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the dataset
// sources and exports need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// New picks the S3 client when an endpoint is configured and a local
// directory backend rooted at localDir otherwise.
func New(cfg config.StorageConfig, localDir string) (ObjectStorage, error) {
	if strings.TrimSpace(cfg.Endpoint) != "" {
		return NewS3Client(cfg)
	}
	if localDir == "" {
		return nil, fmt.Errorf("storage: neither endpoint nor local directory configured")
	}
	return NewLocalClient(localDir), nil
}
