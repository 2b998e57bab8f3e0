package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	SessionsOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sessions_opened_total",
			Help: "Total number of relay sessions opened, keyed by connecting role.",
		},
		[]string{"service", "role"},
	)

	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_sessions_active",
			Help: "Currently connected relay participants.",
		},
		[]string{"service", "role"},
	)

	FramesRelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_frames_relayed_total",
			Help: "Total number of frames forwarded between participants.",
		},
		[]string{"service"},
	)

	FrameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_frame_bytes",
			Help:    "Sizes of frames forwarded between participants.",
			Buckets: prometheus.ExponentialBuckets(32, 2, 12),
		},
		[]string{"service"},
	)

	HandshakeAbortsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_handshake_aborts_total",
			Help: "Total number of server-side handshake aborts, by cause.",
		},
		[]string{"service", "reason"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	SessionsOpenTotal = SessionsOpenTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	SessionsActive = SessionsActive.MustCurryWith(prometheus.Labels{"service": serviceName})
	FramesRelayedTotal = FramesRelayedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	FrameBytes = FrameBytes.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	HandshakeAbortsTotal = HandshakeAbortsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		SessionsOpenTotal,
		SessionsActive,
		FramesRelayedTotal,
		FrameBytes,
		HandshakeAbortsTotal,
	)
}
