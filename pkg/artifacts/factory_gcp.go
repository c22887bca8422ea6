//go:build gcp

package artifacts

import "context"

func newGCSStore(ctx context.Context, c PublishConfig) (Store, error) {
	return NewGCSStore(ctx, GCSStoreConfig{Bucket: c.Bucket, Prefix: c.Prefix})
}
