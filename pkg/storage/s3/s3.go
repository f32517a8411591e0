// Package s3 implements the Storage Gateway on Amazon S3 or any
// S3-compatible service (MinIO, Localstack, Cubbit DS3).
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittowopi/pkg/storage"
)

// Client is the subset of *s3.Client used by the gateway. It exists so tests
// can substitute a fake; production code passes the SDK client directly.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Gateway implements storage.Gateway on a single bucket.
//
// Key Design:
//   - The storage key is used directly as the object key, after the optional
//     prefix. The bucket therefore mirrors the paths handed out by the
//     access-grant endpoint and stays human readable.
//
// Timeouts:
//   - Every call is bounded by OperationTimeout. For GetContent the timeout
//     covers the time to the first response only; streaming the body is
//     bounded by the caller's context.
//
// Thread Safety:
// Safe for concurrent use. Concurrent puts to the same key are last-write-wins,
// which is S3's own single-object semantics.
type S3Gateway struct {
	client           Client
	bucket           string
	keyPrefix        string
	operationTimeout time.Duration
	metrics          storage.Metrics
}

// S3GatewayConfig contains configuration for the S3 gateway.
type S3GatewayConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "wopi/" results in keys like "wopi/reports/q1.xlsx"
	KeyPrefix string

	// OperationTimeout bounds each backend call (0 = no timeout)
	OperationTimeout time.Duration

	// Metrics is optional; nil disables collection
	Metrics storage.Metrics
}

// NewS3Gateway creates a new S3-backed gateway.
//
// The bucket must already exist - this function verifies access with a
// HeadBucket call and does not create it.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3Gateway: Initialized gateway
//   - error: Returns error if bucket access fails or context is cancelled
func NewS3Gateway(ctx context.Context, cfg S3GatewayConfig) (*S3Gateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = storage.NoopMetrics()
	}

	g := &S3Gateway{
		client:           cfg.Client,
		bucket:           cfg.Bucket,
		keyPrefix:        cfg.KeyPrefix,
		operationTimeout: cfg.OperationTimeout,
		metrics:          metrics,
	}

	if err := g.Healthcheck(ctx); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return g, nil
}

// getObjectKey returns the full S3 object key for a storage key.
//
// Example:
//
//	Key:        "reports/q1.xlsx"
//	Key Prefix: "wopi/"
//	S3 Key:     "wopi/reports/q1.xlsx"
func (g *S3Gateway) getObjectKey(key storage.Key) string {
	return g.keyPrefix + string(key)
}

// withTimeout derives the per-operation context.
func (g *S3Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.operationTimeout)
}

// Head performs a HeadObject request.
func (g *S3Gateway) Head(ctx context.Context, key storage.Key) (info *storage.ObjectInfo, err error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { g.metrics.ObserveOperation("head", time.Since(start), err) }()

	opCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	result, err := g.client.HeadObject(opCtx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.getObjectKey(key)),
	})
	if err != nil {
		return nil, classifyError("head", key, err)
	}

	info = &storage.ObjectInfo{}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		info.ModifiedAt = *result.LastModified
	} else {
		return nil, fmt.Errorf("s3 head %s: last-modified not reported: %w", key, storage.ErrBackend)
	}

	return info, nil
}

// GetContent performs a GetObject request and returns the response body
// without buffering it.
//
// The caller must close the returned reader; closing releases the
// per-operation context.
func (g *S3Gateway) GetContent(ctx context.Context, key storage.Key) (rc io.ReadCloser, err error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { g.metrics.ObserveOperation("get", time.Since(start), err) }()

	opCtx, cancel := context.WithCancel(ctx)
	var timer *time.Timer
	if g.operationTimeout > 0 {
		timer = time.AfterFunc(g.operationTimeout, cancel)
	}

	result, err := g.client.GetObject(opCtx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.getObjectKey(key)),
	})
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		cancel()
		return nil, classifyError("get", key, err)
	}

	body := &cancelOnClose{ReadCloser: result.Body, cancel: cancel}
	return storage.MeteredReader(body, g.metrics, "get"), nil
}

// PutContent performs a single PutObject request. S3 makes single-object puts
// atomic, so readers see either the old or the new object.
//
// body should be seekable (e.g. *bytes.Reader) when the endpoint is plain
// HTTP, because the SDK must be able to hash the payload for signing.
func (g *S3Gateway) PutContent(ctx context.Context, key storage.Key, body io.Reader, contentLength int64) (err error) {
	if err := key.Validate(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		g.metrics.ObserveOperation("put", time.Since(start), err)
		if err == nil {
			g.metrics.RecordBytes("put", contentLength)
		}
	}()

	opCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	_, err = g.client.PutObject(opCtx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(g.getObjectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(contentLength),
	})
	if err != nil {
		return classifyError("put", key, err)
	}

	return nil
}

// Healthcheck verifies the bucket is reachable.
func (g *S3Gateway) Healthcheck(ctx context.Context) error {
	opCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	_, err := g.client.HeadBucket(opCtx, &s3.HeadBucketInput{
		Bucket: aws.String(g.bucket),
	})
	if err != nil {
		return classifyError("head-bucket", storage.Key(g.bucket), err)
	}
	return nil
}

// cancelOnClose releases the operation context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
