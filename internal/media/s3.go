package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/xid"
)

// S3Config points at an S3-compatible bucket. PublicURL is the base that
// object keys are appended to when building image URLs; it defaults to
// the endpoint plus bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// S3Uploader stores images as objects under Folder/ with xid keys.
type S3Uploader struct {
	cfg    S3Config
	client *minio.Client
}

var _ Uploader = (*S3Uploader)(nil)

func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: configuring s3 client: %w", err)
	}

	if cfg.PublicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &S3Uploader{cfg: cfg, client: cl}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("media: checking bucket %s: %w", u.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("media: creating bucket %s: %w", u.cfg.Bucket, err)
	}
	return nil
}

func (u *S3Uploader) Upload(ctx context.Context, data []byte, contentType string) (Asset, error) {
	key := objectKey(contentType)
	_, err := u.client.PutObject(ctx, u.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return Asset{}, fmt.Errorf("media: putting object %s: %w", key, err)
	}
	return Asset{URL: u.cfg.PublicURL + "/" + key, ID: key}, nil
}

func (u *S3Uploader) Delete(ctx context.Context, id string) error {
	if err := u.client.RemoveObject(ctx, u.cfg.Bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("media: removing object %s: %w", id, err)
	}
	return nil
}

func objectKey(contentType string) string {
	return Folder + "/" + xid.New().String() + extension(contentType)
}
