package catalog

import (
	"fmt"

	"github.com/timmy/neonmeme/internal/config"
)

// NewStorageBucketConfig maps the storage section of the config.
func NewStorageBucketConfig(cfg config.StorageConfig) *S3Config {
	return &S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	}
}

// NewProvider builds the provider a source config asks for. bucket is only
// consulted by the s3 backend and must be non-nil there.
func NewProvider(src config.SourceConfig, bucket *S3Bucket, exts ...string) (Provider, error) {
	switch src.Backend {
	case "", config.BackendDir:
		return NewDirProvider(src.Dir, exts...), nil
	case config.BackendS3:
		if bucket == nil {
			return nil, fmt.Errorf("backend %q needs storage configuration", src.Backend)
		}
		return bucket.Provider(src.Prefix, exts...), nil
	default:
		return nil, fmt.Errorf("unknown asset backend %q", src.Backend)
	}
}
