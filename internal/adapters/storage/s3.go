package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/domain/providers"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3 store
type S3Options struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	KeyPrefix  string
	PresignTTL time.Duration
}

// S3Store keeps blobs as objects in one bucket and hands out presigned GET URLs
type S3Store struct {
	bucket     string
	prefix     string
	presignTTL time.Duration
	uploader   objectUploader
	deleter    objectDeleter
	presigner  objectPresigner
}

var _ providers.BlobStore = (*S3Store)(nil)

// LoadAWSConfig loads the default AWS config, with static credentials when both keys are given
func LoadAWSConfig(ctx context.Context, region, accessKey, secretKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// NewS3Client builds an S3 client, pointing at a custom endpoint such as MinIO when given
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewS3Store creates a store on opts.Bucket
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must not be empty")
	}
	cfg, err := LoadAWSConfig(ctx, opts.Region, opts.AccessKey, opts.SecretKey)
	if err != nil {
		return nil, err
	}
	client := NewS3Client(cfg, opts.Endpoint)

	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	log.Debug().Str("bucket", opts.Bucket).Msg("s3 blob store enabled")
	return &S3Store{
		bucket:     opts.Bucket,
		prefix:     opts.KeyPrefix,
		presignTTL: ttl,
		uploader:   manager.NewUploader(client),
		deleter:    client,
		presigner:  s3.NewPresignClient(client),
	}, nil
}

func (s *S3Store) objectKey(key string) *string {
	return aws.String(s.prefix + key)
}

// Put uploads body, switching to multipart for large files
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.objectKey(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Delete removes the object; S3 treats missing keys as deleted
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// URLFor returns a presigned GET URL, or an empty string if signing fails
func (s *S3Store) URLFor(key string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to presign photo url")
		return ""
	}
	return req.URL
}
