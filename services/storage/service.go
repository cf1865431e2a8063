package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services/storage/aws_client"
)

const (
	ProviderR2 = "r2"
	ProviderS3 = "s3"
)

// Config selects the bucket that archives fetched review pages. An empty
// bucket disables archiving.
type Config struct {
	Provider        string `env:"REVIEW_ARCHIVE_PROVIDER" envDefault:"r2"`
	BucketName      string `env:"REVIEW_ARCHIVE_BUCKET"`
	Region          string `env:"REVIEW_ARCHIVE_REGION" envDefault:"us-east-1"`
	AccountID       string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"REVIEW_ARCHIVE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"REVIEW_ARCHIVE_ACCESS_KEY_SECRET"`
}

type objectStorage struct {
	client     aws_client.S3Client
	bucketName string
}

func NewObjectStorage(client aws_client.S3Client, bucketName string) interfaces.StorageService {
	return &objectStorage{client: client, bucketName: bucketName}
}

// NewStorageService returns nil when no bucket is configured
func NewStorageService(cfg Config) (interfaces.StorageService, error) {
	if cfg.BucketName == "" {
		return nil, nil
	}

	var (
		client aws_client.S3Client
		err    error
	)
	switch cfg.Provider {
	case ProviderR2:
		client, err = aws_client.NewR2Client(aws_client.R2Config{
			AccountID:       cfg.AccountID,
			AccessKeyID:     cfg.AccessKeyID,
			AccessKeySecret: cfg.AccessKeySecret,
		})
	case ProviderS3:
		client, err = aws_client.NewS3Client(&aws.Config{
			Region:      aws.String(cfg.Region),
			Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		})
	default:
		return nil, errors.Errorf("unknown storage provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage client")
	}
	return NewObjectStorage(client, cfg.BucketName), nil
}

func (s *objectStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorage.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Upload(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
}

func (s *objectStorage) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorage.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Download(ctx, s.bucketName, key)
}

func (s *objectStorage) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorage.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Delete(ctx, s.bucketName, key)
}
