package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "boardcore/internal/infra/blob/fs"
	memstore "boardcore/internal/infra/blob/memory"
	s3store "boardcore/internal/infra/blob/s3"
)

// S3Config configures the S3 archive backend.
type S3Config = s3store.Config

// Environment variables read by Open.
const (
	EnvDriver = "BOARDCORE_BLOB_DRIVER"  // fs|s3|memory, default fs
	EnvFSRoot = "BOARDCORE_BLOB_FS_ROOT" // default ./blobdata
)

// Open selects the archive backend named by EnvDriver. The s3 driver reads
// BOARDCORE_BLOB_S3_BUCKET, BOARDCORE_BLOB_S3_REGION (default us-east-1),
// BOARDCORE_BLOB_S3_ENDPOINT and BOARDCORE_BLOB_S3_PATH_STYLE.
func Open(ctx context.Context) (Store, error) {
	driver := Driver(os.Getenv(EnvDriver))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv(EnvFSRoot))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

// NewMemory returns a process-local store. Archives vanish with the process.
func NewMemory() Store { return memstore.New() }

// NewFilesystem stores archives as files below root.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewS3 stores archives in an S3 compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.New(ctx, cfg) }

// NewMockS3ForTests returns an S3 store whose HTTP transport is served from
// memory.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
