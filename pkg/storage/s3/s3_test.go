package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory stand-in for the S3 API.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	mtimes  map[string]time.Time
	err     error
	puts    []*s3.PutObjectInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, mtimes: map[string]time.Time{}}
}

func (f *fakeClient) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	mtime := f.mtimes[*in.Key]
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: &mtime}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	f.mtimes[*in.Key] = time.Now()
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func newTestGateway(t *testing.T, client *fakeClient) *S3Gateway {
	t.Helper()
	g, err := NewS3Gateway(context.Background(), S3GatewayConfig{
		Client:           client,
		Bucket:           "bucket",
		KeyPrefix:        "wopi/",
		OperationTimeout: time.Second,
	})
	require.NoError(t, err)
	return g
}

func TestNewS3Gateway_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3Gateway(ctx, S3GatewayConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3Gateway(ctx, S3GatewayConfig{Client: newFakeClient()})
	assert.Error(t, err)

	client := newFakeClient()
	client.err = &smithy.GenericAPIError{Code: "AccessDenied"}
	_, err = NewS3Gateway(ctx, S3GatewayConfig{Client: client, Bucket: "b"})
	assert.ErrorIs(t, err, storage.ErrBackend)
}

func TestS3Gateway_PutGetHead(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	g := newTestGateway(t, client)

	require.NoError(t, g.PutContent(ctx, "reports/q1.xlsx", bytes.NewReader([]byte("ABC")), 3))

	require.Len(t, client.puts, 1)
	assert.Equal(t, "wopi/reports/q1.xlsx", *client.puts[0].Key)
	assert.Equal(t, "bucket", *client.puts[0].Bucket)
	assert.Equal(t, int64(3), *client.puts[0].ContentLength)

	rc, err := g.GetContent(ctx, "reports/q1.xlsx")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "ABC", string(data))

	info, err := g.Head(ctx, "reports/q1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)
	assert.False(t, info.ModifiedAt.IsZero())
}

func TestS3Gateway_NotFound(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t, newFakeClient())

	_, err := g.Head(ctx, "missing.xlsx")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = g.GetContent(ctx, "missing.xlsx")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestS3Gateway_InvalidKey(t *testing.T) {
	g := newTestGateway(t, newFakeClient())

	_, err := g.Head(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}

func TestKindOf(t *testing.T) {
	statusErr := func(code int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("boom"),
		}
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", &types.NoSuchKey{}, storage.ErrNotFound},
		{"not found", &types.NotFound{}, storage.ErrNotFound},
		{"http 404", statusErr(404), storage.ErrNotFound},
		{"http 503", statusErr(503), storage.ErrUnavailable},
		{"http 429", statusErr(429), storage.ErrUnavailable},
		{"http 403", statusErr(403), storage.ErrBackend},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, storage.ErrUnavailable},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, storage.ErrBackend},
		{"deadline", context.DeadlineExceeded, storage.ErrUnavailable},
		{"canceled", &smithy.CanceledError{Err: context.Canceled}, storage.ErrUnavailable},
		{"unknown", errors.New("weird"), storage.ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kindOf(tt.err))
		})
	}
}

func TestClassifyError_KeepsCause(t *testing.T) {
	cause := &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"}
	err := classifyError("put", "a.xlsx", cause)

	assert.ErrorIs(t, err, storage.ErrBackend)
	var apiErr smithy.APIError
	assert.True(t, errors.As(err, &apiErr))
}
