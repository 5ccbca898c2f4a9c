//go:build gcp

package objectstore

import "context"

func openGCS(ctx context.Context, cfg GCSConfig) (Store, func() error, error) {
	s, err := NewGCSStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
