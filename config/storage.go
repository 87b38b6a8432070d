package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultImageURLExpiry is how long a presigned recipe image URL stays valid
const DefaultImageURLExpiry = time.Hour

// S3Config holds S3 client and bucket info
type S3Config struct {
	Client     *s3.Client
	BucketName string
	Expiry     time.Duration
}

// NewS3Config initializes the S3 client for the recipe image bucket
func NewS3Config(ctx context.Context, cfg *Config) (*S3Config, error) {
	if cfg.ImageBucket == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME is not set")
	}

	// Load AWS config from environment or shared config
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	return &S3Config{
		Client:     s3.NewFromConfig(awsCfg),
		BucketName: cfg.ImageBucket,
		Expiry:     DefaultImageURLExpiry,
	}, nil
}

// GeneratePresignedURL generates a presigned URL for the given object key with the specified expiration time
func (s *S3Config) GeneratePresignedURL(ctx context.Context, objectKey string, expiration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.Client)
	presignedURL, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", err
	}
	return presignedURL.URL, nil
}

// ResolveImageURL turns a stored image reference into a URL a browser can
// load. Absolute URLs pass through; anything else is an object key.
func (s *S3Config) ResolveImageURL(ctx context.Context, ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	key := strings.TrimPrefix(ref, "s3://"+s.BucketName+"/")
	return s.GeneratePresignedURL(ctx, key, s.Expiry)
}
