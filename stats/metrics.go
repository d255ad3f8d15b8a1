package stats

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors a set of HDDStats into Prometheus vectors keyed by a label
// (folder path, or "global" for the cross-folder aggregate), per §4.J's
// "queryable in-process and scrapeable" requirement.
type Metrics struct {
	bytesTotal   *prometheus.CounterVec
	opsTotal     *prometheus.CounterVec
	nsecSumTotal *prometheus.CounterVec
	nsecMax      *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers the chunkserver's op-class metrics
// against reg. Passing a fresh prometheus.NewRegistry() keeps tests isolated
// from the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkserver",
			Subsystem: "hdd",
			Name:      "bytes_total",
			Help:      "Bytes transferred per folder and operation class.",
		}, []string{"folder", "op"}),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkserver",
			Subsystem: "hdd",
			Name:      "ops_total",
			Help:      "Operation count per folder and operation class.",
		}, []string{"folder", "op"}),
		nsecSumTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkserver",
			Subsystem: "hdd",
			Name:      "nsec_sum_total",
			Help:      "Cumulative operation latency in nanoseconds.",
		}, []string{"folder", "op"}),
		nsecMax: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chunkserver",
			Subsystem: "hdd",
			Name:      "nsec_max",
			Help:      "Maximum single-operation latency observed in the current window.",
		}, []string{"folder", "op"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkserver",
			Subsystem: "hdd",
			Name:      "errors_total",
			Help:      "I/O errors recorded per folder.",
		}, []string{"folder"}),
	}
	reg.MustRegister(m.bytesTotal, m.opsTotal, m.nsecSumTotal, m.nsecMax, m.errorsTotal)
	return m
}

// Observe folds one completed operation into both h and the Prometheus
// vectors labeled by folder.
func (m *Metrics) Observe(h *HDDStats, folder string, class OpClass, bytes uint64, nsec uint64) {
	h.Record(class, bytes, nsec)
	op := class.String()
	m.bytesTotal.WithLabelValues(folder, op).Add(float64(bytes))
	m.opsTotal.WithLabelValues(folder, op).Inc()
	m.nsecSumTotal.WithLabelValues(folder, op).Add(float64(nsec))
	m.nsecMax.WithLabelValues(folder, op).Set(float64(h.Current()[class].NsecMax))
}

// ObserveError records one I/O error against folder's error counter.
func (m *Metrics) ObserveError(folder string) {
	m.errorsTotal.WithLabelValues(folder).Inc()
}
