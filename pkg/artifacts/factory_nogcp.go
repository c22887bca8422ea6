//go:build !gcp

package artifacts

import (
	"context"
	"errors"
)

// ErrGCSDisabled is returned for the gcs backend in builds without -tags gcp.
var ErrGCSDisabled = errors.New("GCS publication is not enabled in this build (use -tags gcp)")

func newGCSStore(context.Context, PublishConfig) (Store, error) {
	return nil, ErrGCSDisabled
}
