// Package metrics exposes decode outcomes and link quality as Prometheus
// collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode outcomes used as the "result" label.
const (
	ResultOK        = "ok"
	ResultCRC       = "crc"
	ResultHeaderCRC = "header_crc"
	ResultMode      = "mode"
	ResultUSF       = "usf"
	ResultInvalid   = "invalid"
)

// Metrics holds the collectors of one engine. Each instance owns its
// registry so several engines (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	encodes       *prometheus.CounterVec   // by channel, scheme
	decodes       *prometheus.CounterVec   // by channel, scheme, result
	bitErrors     *prometheus.CounterVec   // by channel
	bitsTotal     *prometheus.CounterVec   // by channel
	ber           *prometheus.HistogramVec // by channel
	stolen        *prometheus.CounterVec   // FACCH blocks by channel
	decodeSeconds *prometheus.HistogramVec // by channel
	subscribers   prometheus.Gauge
	selfTestBER   *prometheus.GaugeVec // by scheme
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		encodes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btscodec_encodes_total",
				Help: "Blocks encoded",
			},
			[]string{"channel", "scheme"},
		),
		decodes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btscodec_decodes_total",
				Help: "Blocks decoded by outcome",
			},
			[]string{"channel", "scheme", "result"},
		),
		bitErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btscodec_bit_errors_total",
				Help: "Received bits that disagree with the re-encoded block",
			},
			[]string{"channel"},
		),
		bitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btscodec_bits_compared_total",
				Help: "Received bits compared against the re-encoded block",
			},
			[]string{"channel"},
		),
		ber: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "btscodec_block_ber",
				Help:    "Per block bit error ratio",
				Buckets: []float64{0, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"channel"},
		),
		stolen: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btscodec_facch_blocks_total",
				Help: "Traffic blocks stolen for FACCH signalling",
			},
			[]string{"channel"},
		),
		decodeSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "btscodec_decode_duration_seconds",
				Help:    "Time spent decoding one block",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"channel"},
		),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "btscodec_event_subscribers",
			Help: "Active decode event subscribers",
		}),
		selfTestBER: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btscodec_selftest_mean_ber",
				Help: "Mean channel bit error ratio of the last self test",
			},
			[]string{"scheme"},
		),
	}
}

// RecordEncode counts one encoded block.
func (m *Metrics) RecordEncode(channel, scheme string) {
	m.encodes.WithLabelValues(channel, scheme).Inc()
}

// RecordDecode counts one decode attempt with its statistics.
func (m *Metrics) RecordDecode(channel, scheme, result string, nErrors, nBits int, facch bool, took time.Duration) {
	m.decodes.WithLabelValues(channel, scheme, result).Inc()
	m.decodeSeconds.WithLabelValues(channel).Observe(took.Seconds())
	if nBits > 0 {
		m.bitErrors.WithLabelValues(channel).Add(float64(nErrors))
		m.bitsTotal.WithLabelValues(channel).Add(float64(nBits))
		m.ber.WithLabelValues(channel).Observe(float64(nErrors) / float64(nBits))
	}
	if facch {
		m.stolen.WithLabelValues(channel).Inc()
	}
}

// SetSubscribers reports the number of event subscribers.
func (m *Metrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}

// RecordSelfTest stores the mean BER measured for a scheme.
func (m *Metrics) RecordSelfTest(scheme string, meanBER float64) {
	m.selfTestBER.WithLabelValues(scheme).Set(meanBER)
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
