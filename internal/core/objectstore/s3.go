// Package objectstore persists produced artifacts (rendered PDFs, exported
// markdown) in S3 or an S3-compatible bucket such as Cloudflare R2.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cfg "github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
)

// S3Store implements core.ObjectStore. A store built without credentials
// stays usable; every operation then reports ErrConfigurationMissing so the
// rest of the app can run without a bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

func NewS3Store(ctx context.Context, c *cfg.Config, logger *zap.Logger) (*S3Store, error) {
	if c.AwsAccessKey == "" || c.AwsSecretKey == "" || c.BucketName == "" {
		logger.Warn("Object storage credentials not set, artifact storage disabled")
		return &S3Store{logger: logger}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.AwsRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AwsAccessKey, c.AwsSecretKey, ""),
		),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(c.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("Object storage connected", zap.String("bucket", c.BucketName))

	return &S3Store{client: client, bucket: c.BucketName, logger: logger}, nil
}

func (s *S3Store) Configured() bool { return s.client != nil }

// Key builds an object key of the form prefix/YYYY-MM-DD/uuid.ext so a
// bucket listing groups artifacts by day.
func Key(prefix, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%s/%s%s", prefix, time.Now().UTC().Format("2006-01-02"), uuid.New().String(), ext)
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.client == nil {
		return fmt.Errorf("object storage: %w", core.ErrConfigurationMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	s.logger.Info("Artifact stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	if s.client == nil {
		return nil, "", fmt.Errorf("object storage: %w", core.ErrConfigurationMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read s3 body: %w", err)
	}

	contentType := "application/octet-stream"
	if resp.ContentType != nil {
		contentType = *resp.ContentType
	}
	return body, contentType, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return fmt.Errorf("object storage: %w", core.ErrConfigurationMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

var _ core.ObjectStore = (*S3Store)(nil)
