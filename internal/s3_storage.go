package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/lychee-technology/intake"
	"go.uber.org/zap"
)

// S3ObjectStorage is the object-storage collaborator backed by S3 (or a
// MinIO-style endpoint). Keys are namespaced per user and field so the
// bucket's access policy can be expressed in terms of the key prefix.
type S3ObjectStorage struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewS3ObjectStorage builds the S3 collaborator from storage config. A
// non-empty Endpoint switches to path-style addressing with static
// credentials, which is what local MinIO setups need.
func NewS3ObjectStorage(ctx context.Context, cfg intake.StorageConfig, logger *zap.Logger) (*S3ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ObjectStorage{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.KeyPrefix, "/"),
		logger:   logger,
	}, nil
}

// ObjectKey builds the storage key for one uploaded file:
// {prefix}/{userID}/{fieldID}/{uuid}{ext}. The user segment is what access
// policy hangs off; the uuid keeps re-submissions from overwriting each
// other.
func (s *S3ObjectStorage) ObjectKey(userID, fieldID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	parts := []string{s.prefix, userID, fieldID, uuid.Must(uuid.NewV7()).String() + ext}
	if s.prefix == "" {
		parts = parts[1:]
	}
	return strings.Join(parts, "/")
}

// Put uploads one object and returns its stored reference.
func (s *S3ObjectStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (intake.StoredObject, error) {
	if contentType == "" {
		contentType = contentTypeFor(key)
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Warn("s3 upload rejected",
				zap.String("key", key),
				zap.String("code", apiErr.ErrorCode()),
			)
		}
		return intake.StoredObject{}, fmt.Errorf("upload object %s: %w", key, err)
	}

	return intake.StoredObject{
		Key:      key,
		FileName: filepath.Base(key),
		Size:     size,
	}, nil
}

// SignedURL returns a time-limited GET URL for a stored object.
func (s *S3ObjectStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return req.URL, nil
}

// Ping verifies the bucket is reachable and accessible with the configured
// credentials.
func (s *S3ObjectStorage) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
