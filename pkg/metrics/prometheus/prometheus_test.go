package prometheus

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/pkg/storage"
)

func TestBridgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newBridgeMetrics(reg)

	m.RecordRequest("GetFile", http.StatusOK, 10*time.Millisecond)
	m.RecordRequest("GetFile", http.StatusNotFound, time.Millisecond)
	m.RecordRequest("GetFile", http.StatusOK, time.Millisecond)
	m.RecordBytesTransferred("read", 3)
	m.RecordTokenIssued()
	m.RecordTokensSwept(0)
	m.RecordTokensSwept(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GetFile", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GetFile", "404")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tokensSwept))

	m.RecordRequestStart("PutFile")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("PutFile")))
	m.RecordRequestEnd("PutFile")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("PutFile")))
}

func TestBridgeMetrics_LiveTokensGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newBridgeMetrics(reg)

	m.ObserveLiveTokens(func() int { return 7 })
	m.ObserveLiveTokens(func() int { return 99 })

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "dittowopi_tokens_live" {
			found = true
			assert.Equal(t, 7.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestStorageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newStorageMetrics(reg)

	m.ObserveOperation("get", time.Millisecond, nil)
	m.ObserveOperation("get", time.Millisecond, fmt.Errorf("x: %w", storage.ErrNotFound))
	m.ObserveOperation("put", time.Millisecond, fmt.Errorf("x: %w", storage.ErrUnavailable))
	m.RecordBytes("put", 1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("put", "unavailable")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("put")))
}
