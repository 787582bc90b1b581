package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ikkim/bookstore-backend/config"
)

var ErrStorageDisabled = errors.New("object storage is not configured")

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage keeps exported reports in a bucket and hands out time-limited
// download links.
type S3Storage struct {
	client    objectPutter
	presigner objectPresigner
	bucket    string
	region    string
	baseURL   string
	expiry    time.Duration
	now       func() time.Time
}

type PresignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	if !cfg.Enabled() {
		return nil, ErrStorageDisabled
	}

	var awsCfg aws.Config
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region:      cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		}
	} else {
		// Default chain: env, shared config, IAM role
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = loaded
	}

	client := s3.NewFromConfig(awsCfg)
	return newS3Storage(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Storage(client objectPutter, presigner objectPresigner, cfg config.S3Config) *S3Storage {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Storage{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		expiry:    expiry,
		now:       time.Now,
	}
}

// ArchiveKey builds a unique, date-partitioned object key such as
// exports/orders/2026/10/14/<uuid>.xlsx
func (s *S3Storage) ArchiveKey(folder, ext string) string {
	day := s.now().UTC().Format("2006/01/02")
	return fmt.Sprintf("%s/%s/%s%s", strings.Trim(folder, "/"), day, uuid.New().String(), ext)
}

func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a GET link for key valid for the configured expiry
func (s *S3Storage) PresignGet(ctx context.Context, key string) (*PresignedURL, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return &PresignedURL{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: s.now().Add(s.expiry),
	}, nil
}

// ObjectURL is the permanent location of key, through the CDN when one is set
func (s *S3Storage) ObjectURL(key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
