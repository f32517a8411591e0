package storage

import (
	"io"
	"time"
)

// Metrics provides observability for gateway operations.
//
// This is optional - gateways fall back to a no-op implementation when nil
// is supplied. The Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// ObserveOperation records an operation ("head", "get", "put") with its
	// duration and outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred by an operation.
	RecordBytes(operation string, bytes int64)
}

// NoopMetrics returns a Metrics implementation that discards everything.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(operation string, bytes int64)                            {}

// MeteredReader wraps a content stream to count the bytes actually delivered.
// Bytes are reported once, on Close.
func MeteredReader(rc io.ReadCloser, m Metrics, operation string) io.ReadCloser {
	if m == nil {
		return rc
	}
	return &metricsReadCloser{ReadCloser: rc, metrics: m, operation: operation}
}

// metricsReadCloser wraps an io.ReadCloser to track bytes read
type metricsReadCloser struct {
	io.ReadCloser
	metrics   Metrics
	operation string
	bytesRead int64
}

func (m *metricsReadCloser) Read(p []byte) (n int, err error) {
	n, err = m.ReadCloser.Read(p)
	if n > 0 {
		m.bytesRead += int64(n)
	}
	return n, err
}

func (m *metricsReadCloser) Close() error {
	err := m.ReadCloser.Close()
	// Record bytes read regardless of close error
	if m.bytesRead > 0 {
		m.metrics.RecordBytes(m.operation, m.bytesRead)
	}
	return err
}
