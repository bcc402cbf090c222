package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"social-service/internal/config"
	"social-service/internal/util"
)

const (
	largePartSize    = 5 * 1024 * 1024
	largeConcurrency = 4
	// DeleteObjects accepts at most this many keys per call.
	maxDeleteBatch = 1000
)

type S3Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
	folder    string
	urlExpiry time.Duration
	now       func() time.Time
}

// NewS3Store builds a client from the default AWS chain, overridden by static
// keys and a custom endpoint when configured.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	util.Info("S3 object store initialized",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region))

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = largePartSize
			u.Concurrency = largeConcurrency
			u.LeavePartsOnError = false
		}),
		bucket:    cfg.Bucket,
		folder:    cfg.Folder,
		urlExpiry: cfg.SignedURLExpiry,
		now:       time.Now,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, f File, prefix string) (Object, error) {
	key := objectKey(s.folder, prefix, f.Name, s.now())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f.Body,
		ContentType: aws.String(f.ContentType),
	}
	if f.Size > 0 {
		input.ContentLength = aws.Int64(f.Size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.object(ctx, key)
}

func (s *S3Store) UploadLarge(ctx context.Context, f File, prefix string) (Object, error) {
	key := objectKey(s.folder, prefix, f.Name, s.now())
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f.Body,
		ContentType: aws.String(f.ContentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.object(ctx, key)
}

func (s *S3Store) object(ctx context.Context, key string) (Object, error) {
	url, err := s.SignedURL(ctx, key, s.urlExpiry)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: key, URL: url}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) DeleteMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete %d objects: %w", len(objects), err)
		}
		if len(out.Errors) > 0 {
			util.Warn("Some objects were not deleted",
				zap.Int("failed", len(out.Errors)),
				zap.String("first_key", aws.ToString(out.Errors[0].Key)))
		}
	}
	return nil
}

func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", key, err)
	}
	return req.URL, nil
}
