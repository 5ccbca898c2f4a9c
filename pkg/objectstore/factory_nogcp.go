//go:build !gcp

package objectstore

import (
	"context"
	"fmt"
)

func openGCS(context.Context, GCSConfig) (Store, func() error, error) {
	return nil, nil, fmt.Errorf("objectstore: gcs is not enabled in this build (use -tags gcp)")
}
