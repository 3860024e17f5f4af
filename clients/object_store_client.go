package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/metrics"
)

// ObjectStore wraps a single S3-compatible bucket (§6's object-store
// layout: uploads/{user_id}/{upload_id}/source.mp4,
// results/{user_id}/{upload_id}/{sanitized_title}_{utc_timestamp}.xlsx).
// Retries follow the teacher's backoff.Retry-around-the-operation shape
// (video/probe.go, clients/object_store_client.go); the underlying driver
// is aws-sdk-go-v2 instead of the teacher's livepeer/go-tools/drivers
// multi-backend abstraction, since this module only ever talks to one
// S3-compatible bucket (see DESIGN.md).
type ObjectStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
}

func NewObjectStore(cli config.Cli) (*ObjectStore, error) {
	creds := credentials.NewStaticCredentialsProvider(cli.ObjectStoreAccessKey, cli.ObjectStoreSecret, "")
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(cli.ObjectStoreRegion),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cli.ObjectStoreEndpoint != "" {
			o.BaseEndpoint = aws.String(cli.ObjectStoreEndpoint)
			o.UsePathStyle = true
		}
	})

	return &ObjectStore{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   cli.ObjectStoreBucket,
	}, nil
}

// retryBackoff mirrors the teacher's newExponentialBackOffExecutor: short
// initial interval, capped max interval, no overall time limit (the retry
// count bounds the total attempts instead).
func retryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, 5)
}

// Download fetches key from the store, retrying transient failures.
func (o *ObjectStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	var body io.ReadCloser
	start := time.Now()
	op := func() error {
		out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(o.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				return backoff.Permanent(xerrors.NewObjectNotFoundError(fmt.Sprintf("key %q not found", key), err))
			}
			return err
		}
		body = out.Body
		return nil
	}

	if err := backoff.Retry(op, retryBackoff()); err != nil {
		metrics.Metrics.ObjectStoreClient.FailureCount.WithLabelValues(o.bucket, "000").Inc()
		return nil, fmt.Errorf("failed to download %q from object store: %w", key, err)
	}
	metrics.Metrics.ObjectStoreClient.RequestDuration.WithLabelValues(o.bucket).Observe(time.Since(start).Seconds())
	return body, nil
}

// Upload writes data to key, retrying transient failures.
func (o *ObjectStore) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	start := time.Now()
	op := func() error {
		_, err := o.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(o.bucket),
			Key:         aws.String(key),
			Body:        data,
			ContentType: aws.String(contentType),
		})
		return err
	}

	if err := backoff.Retry(op, retryBackoff()); err != nil {
		metrics.Metrics.ObjectStoreClient.FailureCount.WithLabelValues(o.bucket, "000").Inc()
		return fmt.Errorf("failed to upload %q to object store: %w", key, err)
	}
	metrics.Metrics.ObjectStoreClient.RequestDuration.WithLabelValues(o.bucket).Observe(time.Since(start).Seconds())
	return nil
}

// PresignGet returns a time-limited GET URL, used for the gateway's
// /v1/result/{upload_id} 302 redirect (§6).
func (o *ObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := o.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign GET for %q: %w", key, err)
	}
	return req.URL, nil
}

// PresignPost returns a pre-signed PUT URL used as the gateway's upload
// target. aws-sdk-go-v2 has no native presigned-POST-with-fields API (the
// v1 SDK's PresignPostObject), so this uses the simpler presigned-PUT
// pattern: the gateway hands the caller a single URL to PUT the file body
// to directly, which the worker's /process step then reads back by key.
func (o *ObjectStore) PresignPost(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := o.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign PUT for %q: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes key; used for the single-deleter discipline around the
// downloaded source file once a job finishes (§5).
func (o *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q from object store: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such key") || strings.Contains(msg, "notfound")
}
