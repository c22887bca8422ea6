package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Backend names where run reports are published.
type Backend string

const (
	BackendFS  Backend = "fs"
	BackendS3  Backend = "s3"
	BackendGCS Backend = "gcs"
)

// DefaultPrefix namespaces docreg reports inside a shared bucket.
const DefaultPrefix = "docreg/reports/"

// ErrNoBucket is returned when an object-store backend has no bucket.
var ErrNoBucket = errors.New("publication bucket is required")

// PublishConfig selects the report publication backend.
type PublishConfig struct {
	Backend  Backend
	Dir      string // fs: reports directory
	Bucket   string // s3, gcs
	Region   string // s3
	Endpoint string // s3: MinIO/LocalStack
	Prefix   string // s3, gcs: key namespace
}

// PublishConfigFromEnv reads the publication settings.
//
//   - ARTIFACT_STORAGE_TYPE: "fs" (default), "s3" or "gcs"
//   - DATA_DIR: reports go to $DATA_DIR/reports for fs (default "data")
//   - ARTIFACT_S3_BUCKET, ARTIFACT_S3_REGION (or AWS_REGION),
//     ARTIFACT_S3_ENDPOINT, ARTIFACT_S3_PREFIX
//   - ARTIFACT_GCS_BUCKET, ARTIFACT_GCS_PREFIX (binaries built with -tags gcp)
//
// An unset prefix defaults to DefaultPrefix; a prefix set to "" publishes at
// the bucket root.
func PublishConfigFromEnv() PublishConfig {
	c := PublishConfig{Backend: Backend(os.Getenv("ARTIFACT_STORAGE_TYPE"))}
	if c.Backend == "" {
		c.Backend = BackendFS
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	c.Dir = filepath.Join(dataDir, "reports")

	switch c.Backend {
	case BackendS3:
		c.Bucket = os.Getenv("ARTIFACT_S3_BUCKET")
		c.Region = os.Getenv("ARTIFACT_S3_REGION")
		if c.Region == "" {
			c.Region = os.Getenv("AWS_REGION")
		}
		if c.Region == "" {
			c.Region = "us-east-1"
		}
		c.Endpoint = os.Getenv("ARTIFACT_S3_ENDPOINT")
		c.Prefix = prefixFromEnv("ARTIFACT_S3_PREFIX")
	case BackendGCS:
		c.Bucket = os.Getenv("ARTIFACT_GCS_BUCKET")
		c.Prefix = prefixFromEnv("ARTIFACT_GCS_PREFIX")
	}
	return c
}

func prefixFromEnv(key string) string {
	p, ok := os.LookupEnv(key)
	if !ok {
		return DefaultPrefix
	}
	if p != "" && p[len(p)-1] != '/' {
		p += "/"
	}
	return p
}

// NewStore opens the publication store described by c.
func NewStore(ctx context.Context, c PublishConfig) (Store, error) {
	switch c.Backend {
	case BackendFS, "":
		return NewFileStore(c.Dir)
	case BackendS3:
		if c.Bucket == "" {
			return nil, fmt.Errorf("s3: %w (ARTIFACT_S3_BUCKET)", ErrNoBucket)
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   c.Bucket,
			Region:   c.Region,
			Endpoint: c.Endpoint,
			Prefix:   c.Prefix,
		})
	case BackendGCS:
		if c.Bucket == "" {
			return nil, fmt.Errorf("gcs: %w (ARTIFACT_GCS_BUCKET)", ErrNoBucket)
		}
		return newGCSStore(ctx, c)
	default:
		return nil, fmt.Errorf("unsupported artifact storage type: %s", c.Backend)
	}
}

// NewStoreFromEnv opens the store selected by PublishConfigFromEnv.
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	return NewStore(ctx, PublishConfigFromEnv())
}

// ReportKey is the key a run's report file is published under:
// "<runID>/<base name of file>".
func ReportKey(runID, file string) string {
	return path.Join(runID, filepath.Base(file))
}
