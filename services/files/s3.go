package filesvc

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

// s3Storage stores files in any S3 compatible bucket (AWS S3, MinIO...).
type s3Storage struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

var _ core.FileStorage = (*s3Storage)(nil)

func NewS3Storage(ctx context.Context, conf core.StorageConfig) (core.FileStorage, error) {
	if conf.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if conf.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	})

	baseURL := conf.PublicBaseURL
	if baseURL == "" {
		baseURL = defaultS3URL(conf, region)
	}
	return &s3Storage{client: client, bucket: conf.Bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func defaultS3URL(conf core.StorageConfig, region string) string {
	if conf.Endpoint != "" {
		return strings.TrimRight(conf.Endpoint, "/") + "/" + conf.Bucket
	}
	return "https://" + conf.Bucket + ".s3." + region + ".amazonaws.com"
}

func (st *s3Storage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(st.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", key)
	}
	return st.baseURL + "/" + key, nil
}
