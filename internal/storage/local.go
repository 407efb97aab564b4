package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	cmstorage "github.com/chartmuseum/storage"
)

// LocalClient implements ObjectStorage over a directory, so the object
// source and exports work without a bucket.
type LocalClient struct {
	backend cmstorage.Backend
}

func NewLocalClient(rootDir string) *LocalClient {
	return &LocalClient{backend: cmstorage.NewLocalFilesystemBackend(rootDir)}
}

// ListObjects lists the files directly under prefix. Keys include the prefix.
func (c *LocalClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objects, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("local list failed: %w", err)
	}
	results := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		results = append(results, ObjectInfo{
			Key:  path.Join(prefix, object.Path),
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

func (c *LocalClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	object, err := c.backend.GetObject(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("local get %s: %w", key, err)
	}
	return object.Content, nil
}

// PutObject writes data under key. contentType is ignored.
func (c *LocalClient) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("local put %s: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*LocalClient)(nil)
