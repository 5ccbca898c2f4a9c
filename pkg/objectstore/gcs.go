//go:build gcp

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore keeps each object at <prefix><catalog>/<id>, both path-escaped.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstore: gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSStore) catalogPrefix(catalog string) string {
	return s.prefix + url.PathEscape(catalog) + "/"
}

func (s *GCSStore) object(catalog, id string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.catalogPrefix(catalog) + url.PathEscape(id))
}

func (s *GCSStore) Save(ctx context.Context, catalog, id string, data []byte) error {
	if err := validate(catalog, id); err != nil {
		return err
	}
	w := s.object(catalog, id).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("objectstore: gcs write %s/%s: %w", catalog, id, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("objectstore: gcs commit %s/%s: %w", catalog, id, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, catalog string) ([]Item, error) {
	if err := validate(catalog); err != nil {
		return nil, err
	}
	prefix := s.catalogPrefix(catalog)
	bucket := s.client.Bucket(s.bucket)

	var items []Item
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("objectstore: gcs list %s: %w", catalog, err)
		}
		rest := strings.TrimPrefix(attrs.Name, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		id, err := url.PathUnescape(rest)
		if err != nil {
			continue
		}
		r, err := bucket.Object(attrs.Name).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("objectstore: gcs get %s: %w", attrs.Name, err)
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return nil, fmt.Errorf("objectstore: gcs read %s: %w", attrs.Name, err)
		}
		items = append(items, Item{ID: id, Data: data})
	}
	sortItems(items)
	return items, nil
}

func (s *GCSStore) Delete(ctx context.Context, catalog, id string) error {
	if err := validate(catalog, id); err != nil {
		return err
	}
	err := s.object(catalog, id).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("objectstore: gcs delete %s/%s: %w", catalog, id, err)
	}
	return nil
}

func (s *GCSStore) Close() error { return s.client.Close() }
