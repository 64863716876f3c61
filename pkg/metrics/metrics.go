package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Frame pipeline metrics
	FramesProcessed *prometheus.CounterVec
	FrameErrors     *prometheus.CounterVec
	EncryptLatency  prometheus.Histogram
	DecryptLatency  prometheus.Histogram

	// Context metrics
	ActiveContexts prometheus.Gauge
	KeyGeneration  prometheus.Gauge
	KeyRotations   prometheus.Counter
)

// Frame outcome labels
const (
	OutcomeEncrypted   = "encrypted"
	OutcomeDecrypted   = "decrypted"
	OutcomePassthrough = "passthrough"
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		FramesProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framecipher_frames_processed_total",
				Help: "Total number of frames processed, by outcome",
			},
			[]string{"direction", "outcome"},
		)

		FrameErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framecipher_frame_errors_total",
				Help: "Total number of per-frame failures, by reason",
			},
			[]string{"direction", "reason"},
		)

		EncryptLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "framecipher_encrypt_latency_seconds",
				Help:    "Latency of single-frame encryption",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10µs to ~40ms
			},
		)

		DecryptLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "framecipher_decrypt_latency_seconds",
				Help:    "Latency of single-frame decryption",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
			},
		)

		ActiveContexts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "framecipher_active_contexts",
				Help: "Number of live cipher contexts",
			},
		)

		KeyGeneration = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "framecipher_key_generation",
				Help: "Most recently installed key generation",
			},
		)

		KeyRotations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "framecipher_key_rotations_total",
				Help: "Total number of key installs and rotations",
			},
		)

		registry.MustRegister(
			FramesProcessed,
			FrameErrors,
			EncryptLatency,
			DecryptLatency,
			ActiveContexts,
			KeyGeneration,
			KeyRotations,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the metrics registry, or nil before Init.
func GetRegistry() *prometheus.Registry {
	return registry
}

// The Record helpers are safe to call before Init; they become no-ops so the
// worker and tests never depend on metrics being wired up.

// RecordFrame counts one processed frame for a direction/outcome pair.
func RecordFrame(direction, outcome string) {
	if FramesProcessed != nil {
		FramesProcessed.WithLabelValues(direction, outcome).Inc()
	}
}

// RecordError counts one per-frame failure.
func RecordError(direction, reason string) {
	if FrameErrors != nil {
		FrameErrors.WithLabelValues(direction, reason).Inc()
	}
}

// ObserveEncryptLatency records one encryption duration in seconds.
func ObserveEncryptLatency(seconds float64) {
	if EncryptLatency != nil {
		EncryptLatency.Observe(seconds)
	}
}

// ObserveDecryptLatency records one decryption duration in seconds.
func ObserveDecryptLatency(seconds float64) {
	if DecryptLatency != nil {
		DecryptLatency.Observe(seconds)
	}
}

// RecordKeyInstall tracks a key install or rotation.
func RecordKeyInstall(generation uint8) {
	if KeyRotations != nil {
		KeyRotations.Inc()
	}
	if KeyGeneration != nil {
		KeyGeneration.Set(float64(generation))
	}
}

// ContextOpened increments the live context gauge.
func ContextOpened() {
	if ActiveContexts != nil {
		ActiveContexts.Inc()
	}
}

// ContextClosed decrements the live context gauge.
func ContextClosed() {
	if ActiveContexts != nil {
		ActiveContexts.Dec()
	}
}
