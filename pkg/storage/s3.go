package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/beam-cloud/savn/pkg/archive"
	"github.com/beam-cloud/savn/pkg/common"
	"github.com/beam-cloud/savn/pkg/metrics"
	"github.com/rs/zerolog/log"
)

type S3ArchiveStorageCredentials struct {
	AccessKey string
	SecretKey string
}

type S3ArchiveStorage struct {
	svc    *s3.Client
	bucket string
	key    string
}

type S3ArchiveStorageOpts struct {
	Bucket         string
	Key            string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	HTTPClient     *http.Client
}

func NewS3ArchiveStorage(ctx context.Context, opts S3ArchiveStorageOpts) (*S3ArchiveStorage, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if opts.AccessKey != "" && opts.SecretKey != "" {
		accessKey = opts.AccessKey
		secretKey = opts.SecretKey
	}

	cfg, err := getAWSConfig(ctx, accessKey, secretKey, opts.Region, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// Check to see if we have access to the bucket
	_, err = svc.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot access bucket <%s>: %w", opts.Bucket, err)
	}

	return &S3ArchiveStorage{
		svc:    svc,
		bucket: opts.Bucket,
		key:    opts.Key,
	}, nil
}

func getAWSConfig(ctx context.Context, accessKey string, secretKey string, region string, httpClient *http.Client) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKey != "" && secretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	if httpClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(httpClient))
	}

	return config.LoadDefaultConfig(ctx, loadOpts...)
}

func (s3c *S3ArchiveStorage) Location() string {
	return common.S3StorageInfo{Bucket: s3c.bucket, Key: s3c.key}.String()
}

func (s3c *S3ArchiveStorage) Load(ctx context.Context) (*common.Archive, error) {
	resp, err := s3c.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3c.bucket),
		Key:    aws.String(s3c.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrNotFound, s3c.Location(), err)
		}
		return nil, fmt.Errorf("failed to download archive <%s>: %w", s3c.Location(), err)
	}
	defer resp.Body.Close()

	a, err := archive.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to decode archive <%s>: %w", s3c.Location(), err)
	}

	size := int64(0)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	metrics.RecordDecode(a.Len(), size)

	return a, nil
}

// Store uploads the whole archive as a single object. S3 replaces objects
// atomically, so readers never observe a partial archive.
func (s3c *S3ArchiveStorage) Store(ctx context.Context, a *common.Archive) error {
	encoded, err := archive.EncodeBytes(a)
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(s3c.svc)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s3c.bucket),
		Key:    aws.String(s3c.key),
		Body:   bytes.NewReader(encoded),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive <%s>: %w", s3c.Location(), err)
	}

	metrics.RecordEncode(a.Len(), int64(len(encoded)))
	log.Debug().Str("location", s3c.Location()).Int("bytes", len(encoded)).Msg("archive uploaded")

	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var responseErr *awshttp.ResponseError
	return errors.As(err, &responseErr) && responseErr.HTTPStatusCode() == http.StatusNotFound
}
