package records

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"whaling/internal/core"
)

// maxObjectBytes bounds the dataset download.
const maxObjectBytes = 64 << 20

// S3Config locates the dataset object. Endpoint and PathStyle are for
// S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3 reads a CSV or XLSX dataset from an object store. The format follows
// the object key extension.
type S3 struct {
	client *s3.Client
	bucket string
	key    string
}

var _ Source = (*S3)(nil)

// NewS3 builds a client from the default AWS credential chain. opts are
// passed to the config loader.
func NewS3(ctx context.Context, cfg S3Config, opts ...func(*config.LoadOptions) error) (*S3, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("s3 bucket and key required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, opts...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (s *S3) Load(ctx context.Context) ([]core.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("s3://%s/%s exceeds %d bytes", s.bucket, s.key, maxObjectBytes)
	}

	var records []core.Record
	switch strings.ToLower(path.Ext(s.key)) {
	case ".xlsx":
		records, err = ReadXLSX(bytes.NewReader(data))
	case ".xls":
		records, err = ReadXLS(bytes.NewReader(data))
	default:
		records, err = ReadCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parse s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return records, nil
}
