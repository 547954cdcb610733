package objectstore

import (
	"bytes"
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
)

// S3Store talks to MinIO (or any S3 API) with path-style addressing and
// static credentials.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	region   string
	endpoint string
	logger   *zap.Logger
}

// NewS3Store builds a client for cfg. No request is made until the first call.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig, log *zap.Logger) (*S3Store, error) {
	if log == nil {
		log = logger.Get()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		// the scheduler owns retries
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load object store configuration")
	}

	endpoint := cfg.EndpointURL()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = 1
		}),
		region:   region,
		endpoint: endpoint,
		logger:   log.With(zap.String("component", "objectstore")),
	}, nil
}

// Endpoint returns the endpoint URL requests go to
func (s *S3Store) Endpoint() string {
	return s.endpoint
}

// EnsureBucket creates bucket unless it already exists
func (s *S3Store) EnsureBucket(ctx context.Context, bucket string) error {
	log := logger.FromContext(ctx, s.logger).With(zap.String("bucket", bucket))

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		log.Debug("bucket exists")
		return nil
	}
	if !isNotFound(err) {
		return errors.Wrap(err, errors.ErrorTypeStorageWrite, "failed to check bucket").
			WithDetail("bucket", bucket)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 must not be sent as a location constraint
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if isAlreadyOwned(err) {
			log.Debug("bucket created concurrently")
			return nil
		}
		return errors.Wrap(err, errors.ErrorTypeStorageWrite, "failed to create bucket").
			WithDetail("bucket", bucket)
	}

	log.Info("created bucket")
	return nil
}

// PutObject uploads body under key, replacing any existing object
func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	start := time.Now()

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"created": time.Now().UTC().Format(time.RFC3339),
			"bytes":   strconv.Itoa(len(body)),
		},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorageWrite, "failed to upload object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	logger.FromContext(ctx, s.logger).Info("object uploaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if stderrors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if stderrors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

func isAlreadyOwned(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if stderrors.As(err, &owned) {
		return true
	}
	var apiErr smithy.APIError
	return stderrors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou"
}

var _ Store = (*S3Store)(nil)
