package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittowopi/pkg/metrics"
)

// bridgeMetrics is the Prometheus implementation of metrics.BridgeMetrics.
type bridgeMetrics struct {
	reg              *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
	tokensIssued     prometheus.Counter
	tokensRevoked    prometheus.Counter
	tokensSwept      prometheus.Counter
	rateLimited      *prometheus.CounterVec
}

// NewBridgeMetrics creates a Prometheus-backed BridgeMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewBridgeMetrics() metrics.BridgeMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopBridgeMetrics()
	}
	return newBridgeMetrics(metrics.GetRegistry())
}

func newBridgeMetrics(reg *prometheus.Registry) *bridgeMetrics {
	return &bridgeMetrics{
		reg: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_requests_total",
				Help: "Total number of bridge requests by operation and HTTP status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittowopi_request_duration_seconds",
				Help: "Duration of bridge requests in seconds",
				Buckets: []float64{
					0.005, // 5ms
					0.025, // 25ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittowopi_requests_in_flight",
				Help: "Current number of bridge requests being processed",
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_bytes_transferred_total",
				Help: "Total file bytes moved through the bridge",
			},
			[]string{"direction"},
		),
		tokensIssued: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittowopi_tokens_issued_total",
			Help: "Total number of access tokens issued",
		}),
		tokensRevoked: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittowopi_tokens_revoked_total",
			Help: "Total number of access tokens revoked",
		}),
		tokensSwept: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dittowopi_tokens_expired_total",
			Help: "Total number of expired access tokens removed by the sweeper",
		}),
		rateLimited: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittowopi_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"operation"},
		),
	}
}

func (m *bridgeMetrics) RecordRequest(operation string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *bridgeMetrics) RecordRequestStart(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Inc()
}

func (m *bridgeMetrics) RecordRequestEnd(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Dec()
}

func (m *bridgeMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *bridgeMetrics) RecordTokenIssued()  { m.tokensIssued.Inc() }
func (m *bridgeMetrics) RecordTokenRevoked() { m.tokensRevoked.Inc() }

func (m *bridgeMetrics) RecordTokensSwept(n int) {
	if n > 0 {
		m.tokensSwept.Add(float64(n))
	}
}

func (m *bridgeMetrics) RecordRateLimited(operation string) {
	m.rateLimited.WithLabelValues(operation).Inc()
}

// ObserveLiveTokens registers a gauge function. Only the first registration
// takes effect; later ones are ignored.
func (m *bridgeMetrics) ObserveLiveTokens(fn func() int) {
	_ = m.reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dittowopi_tokens_live",
			Help: "Number of tokens currently held by the registry",
		},
		func() float64 { return float64(fn()) },
	))
}
