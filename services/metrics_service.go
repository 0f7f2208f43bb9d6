package services

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kairo_api_requests_total",
			Help: "Control API requests by route group and method",
		},
		[]string{"group", "method"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kairo_api_request_errors_total",
			Help: "Control API requests answered with status >= 400",
		},
		[]string{"group", "method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kairo_api_request_duration_seconds",
			Help:    "Duration of control API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"group"},
	)

	tunnelsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kairo_tunnels_running",
			Help: "Tunnel client processes currently supervised",
		},
	)

	tunnelEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kairo_tunnel_events_total",
			Help: "Tunnel lifecycle events (started, stopped, exited)",
		},
		[]string{"event"},
	)

	acquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kairo_binary_acquisitions_total",
			Help: "Binary acquisition runs by outcome",
		},
		[]string{"result"},
	)

	downloadAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kairo_download_attempts_total",
			Help: "Download attempts, including retries",
		},
	)

	downloadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kairo_download_bytes_total",
			Help: "Bytes received by the downloader",
		},
	)

	// prometheus counters can't be read back cheaply, /healthz uses these
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	activeTunnels atomic.Int64
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(tunnelsRunning)
	prometheus.MustRegister(tunnelEvents)
	prometheus.MustRegister(acquisitions)
	prometheus.MustRegister(downloadAttempts)
	prometheus.MustRegister(downloadBytes)
}

/**
 * Record one finished control API request
 * @param {string} group - Route group (tunnels, binary, health, ...)
 * @param {string} method - HTTP method
 * @param {int} status - Response status
 * @param {float64} seconds - Handling time
 */
func RecordAPIRequest(group, method string, status int, seconds float64) {
	requestCount.WithLabelValues(group, method).Inc()
	requestDuration.WithLabelValues(group).Observe(seconds)
	totalRequests.Add(1)
	if status >= 400 {
		requestErrors.WithLabelValues(group, method, strconv.Itoa(status)).Inc()
		totalErrors.Add(1)
	}
}

func GetTotalRequestCount() int64 {
	return totalRequests.Load()
}

func GetTotalErrorCount() int64 {
	return totalErrors.Load()
}

func SetTunnelsRunning(n int) {
	tunnelsRunning.Set(float64(n))
	activeTunnels.Store(int64(n))
}

func GetTunnelsRunning() int {
	return int(activeTunnels.Load())
}

func RecordTunnelEvent(event string) {
	tunnelEvents.WithLabelValues(event).Inc()
}

func RecordAcquisition(result string) {
	acquisitions.WithLabelValues(result).Inc()
}

func RecordDownloadAttempt(bytes int64) {
	downloadAttempts.Inc()
	if bytes > 0 {
		downloadBytes.Add(float64(bytes))
	}
}
