// Package archive uploads sweep summaries to S3 compatible storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client writes JSON documents into one bucket under a key prefix.
type Client struct {
	s3     objectPutter
	bucket string
	prefix string
}

// NewClient creates an S3 client for the archive settings
func NewClient(ctx context.Context, cfg config.Archive) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("sweep archive is disabled")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3 compatible providers (MinIO, Backblaze B2) need path-style URLs
			o.UsePathStyle = true
		}
	})

	log.Infof("[Archive] Sweep summaries go to s3://%s/%s", cfg.Bucket, cfg.Prefix)
	return newClient(s3Client, cfg.Bucket, cfg.Prefix), nil
}

func newClient(p objectPutter, bucket, prefix string) *Client {
	return &Client{s3: p, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ObjectKey is prefix/sweep/YYYY/MM/DD/HHMMSS.json in UTC.
func ObjectKey(prefix, sweep string, at time.Time) string {
	at = at.UTC()
	return path.Join(prefix, sweep, at.Format("2006/01/02"), at.Format("150405")+".json")
}

// Store uploads one JSON summary and returns its object key.
func (c *Client) Store(ctx context.Context, sweep string, at time.Time, body []byte) (string, error) {
	key := ObjectKey(c.prefix, sweep, at)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}
