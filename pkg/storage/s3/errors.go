package s3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/dittowopi/pkg/storage"
)

// httpStatusError is satisfied by smithy and AWS HTTP response errors.
type httpStatusError interface {
	HTTPStatusCode() int
}

// classifyError maps an SDK error onto the storage error taxonomy. The
// original error stays in the chain for server-side logging.
func classifyError(op string, key storage.Key, err error) error {
	return fmt.Errorf("s3 %s %s: %w: %w", op, key, kindOf(err), err)
}

// kindOf returns the storage sentinel describing err.
//
// Order matters: typed not-found errors first, then HTTP status, then API
// error codes, then transport-level failures.
func kindOf(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return storage.ErrNotFound
	}
	if errors.As(err, &noSuchBucket) {
		return storage.ErrBackend
	}

	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return storage.ErrNotFound
		case code == http.StatusTooManyRequests, code >= 500:
			return storage.ErrUnavailable
		case code != 0:
			return storage.ErrBackend
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return storage.ErrNotFound
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "InternalError":
			return storage.ErrUnavailable
		}
		return storage.ErrBackend
	}

	var canceled *smithy.CanceledError
	var netErr net.Error
	switch {
	case errors.As(err, &canceled),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return storage.ErrUnavailable
	}

	return storage.ErrBackend
}
