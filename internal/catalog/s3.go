package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// StorageType defines the type of S3-compatible storage
type StorageType string

const (
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
)

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Type      StorageType
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// S3Bucket is a bucket client shared by the providers reading from it.
type S3Bucket struct {
	client    *s3.Client
	bucket    string
	storeType StorageType
}

// NewS3Bucket creates a client for an S3-compatible bucket. An empty
// endpoint uses AWS's own endpoint resolution.
func NewS3Bucket(ctx context.Context, cfg *S3Config) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}

	region := cfg.Region
	if region == "" {
		if cfg.Type == StorageTypeR2 {
			region = "auto"
		} else {
			region = "us-east-1"
		}
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint == "" {
			return
		}
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, normalizeEndpoint(cfg.Endpoint)))
		o.UsePathStyle = true
	})

	return &S3Bucket{client: client, bucket: cfg.Bucket, storeType: cfg.Type}, nil
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "", strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	default:
		return StorageTypeS3Compatible
	}
}

// normalizeEndpoint removes protocol prefix and path from endpoint
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}

// EnsureBucket creates the bucket if HeadBucket reports it missing. Any other
// failure, such as denied access, is returned as is.
func (b *S3Bucket) EnsureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}
	var missing *types.NotFound
	if !errors.As(err, &missing) {
		return fmt.Errorf("failed to access bucket %s: %w", b.bucket, err)
	}

	// R2 doesn't support creating buckets via API
	if b.storeType == StorageTypeR2 {
		return fmt.Errorf("bucket %s does not exist, please create it in R2 dashboard", b.bucket)
	}

	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Provider returns a provider over the objects directly under prefix whose
// extension is in exts.
func (b *S3Bucket) Provider(prefix string, exts ...string) *S3Provider {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Provider{bucket: b, prefix: prefix, exts: exts}
}

// S3Provider serves objects under one key prefix of a bucket.
type S3Provider struct {
	bucket *S3Bucket
	prefix string
	exts   []string
}

// nameForKey maps an object key to a resource name, or "" when the key is
// not a direct, acceptable child of the prefix.
func (p *S3Provider) nameForKey(key string) string {
	if !strings.HasPrefix(key, p.prefix) {
		return ""
	}
	name := strings.TrimPrefix(key, p.prefix)
	if !acceptable(name, p.exts) {
		return ""
	}
	return name
}

// List returns the matching objects sorted by name.
func (p *S3Provider) List(ctx context.Context) ([]Resource, error) {
	paginator := s3.NewListObjectsV2Paginator(p.bucket.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket.bucket),
		Prefix: aws.String(p.prefix),
	})

	items := []Resource{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := p.nameForKey(aws.ToString(obj.Key))
			if name == "" {
				continue
			}
			items = append(items, Resource{Name: name, Size: aws.ToInt64(obj.Size)})
		}
	}

	sortResources(items)
	return items, nil
}

// Open downloads an object body. The caller closes it.
func (p *S3Provider) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !acceptable(name, p.exts) {
		return nil, notFound(name)
	}

	result, err := p.bucket.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket.bucket),
		Key:    aws.String(p.prefix + name),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return result.Body, nil
}
