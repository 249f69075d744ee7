package materials

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"storyweave/models"
)

// Bucket keeps materials in an S3 compatible bucket.
type Bucket struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

var _ Materials = (*Bucket)(nil)

type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewBucket connects to the object store and creates the bucket if needed.
func NewBucket(ctx context.Context, cfg BucketConfig, logger *zap.Logger) (*Bucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Created materials bucket", zap.String("bucket", cfg.Bucket))
	}
	return &Bucket{client: client, bucket: cfg.Bucket, logger: logger.Named("bucket")}, nil
}

func (b *Bucket) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: bad material name %q", models.ErrValidation, name)
	}
	info, err := b.client.PutObject(ctx, b.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", name, err)
	}
	b.logger.Debug("Stored object", zap.String("name", name), zap.Int64("size", info.Size))
	return nil
}

func (b *Bucket) Open(ctx context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, name)
	}
	obj, err := b.client.GetObject(ctx, b.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, name)
		}
		return nil, fmt.Errorf("stat object %s: %w", name, err)
	}
	return &Object{
		ReadSeekCloser: obj,
		Size:           st.Size,
		ModTime:        st.LastModified,
		ContentType:    st.ContentType,
	}, nil
}
