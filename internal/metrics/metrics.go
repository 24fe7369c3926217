// Package metrics exposes per-channel operational counters over
// Prometheus's text exposition format, grounded on the corpus's
// prometheus/client_golang usage for daemon instrumentation. Nothing in
// the teacher's own src/ uses this dependency, so the shape here is
// the conventional client_golang idiom: a private registry per Registry
// value, a vector metric per concern, labeled by channel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter/gauge this node publishes, one per
// radio channel via the "channel" label.
type Registry struct {
	T1Expiries     *prometheus.CounterVec
	Retransmits    *prometheus.CounterVec
	RSCorrections  *prometheus.CounterVec
	CSMADefers     *prometheus.CounterVec
	FramesTX       *prometheus.CounterVec
	FramesRX       *prometheus.CounterVec
	SessionsActive *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New registers every metric against its own prometheus.Registry so
// repeated calls in tests don't collide with the global default
// registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		T1Expiries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetnode",
			Name:      "t1_expiries_total",
			Help:      "Number of times the AX.25 retransmission timer (T1) expired.",
		}, []string{"channel"}),
		Retransmits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetnode",
			Name:      "retransmits_total",
			Help:      "Number of I/S frames retransmitted after a T1 expiry.",
		}, []string{"channel"}),
		RSCorrections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetnode",
			Name:      "rs_corrections_total",
			Help:      "Number of byte errors corrected by the Reed-Solomon decoder.",
		}, []string{"channel"}),
		CSMADefers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetnode",
			Name:      "csma_defers_total",
			Help:      "Number of times channel access deferred due to a busy channel or failed persistence roll.",
		}, []string{"channel"}),
		FramesTX: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetnode",
			Name:      "frames_tx_total",
			Help:      "Number of AX.25 frames transmitted.",
		}, []string{"channel"}),
		FramesRX: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetnode",
			Name:      "frames_rx_total",
			Help:      "Number of AX.25 frames received and decoded.",
		}, []string{"channel"}),
		SessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "packetnode",
			Name:      "sessions_active",
			Help:      "Number of data-link sessions not in the Disconnected state.",
		}, []string{"channel"}),
	}

	r.registry = reg
	return r
}

// Handler returns the HTTP handler serving this registry's metrics in
// Prometheus text exposition format, intended to be mounted at
// "/metrics" by cmd/packetnode.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
