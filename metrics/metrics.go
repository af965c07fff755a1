// Package metrics counts the outcome of a tile job. The counters live in their own registry so a
// batch run can dump them to a node_exporter textfile when it finishes.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tileoperator"

type Metrics struct {
	registry *prometheus.Registry

	tilesPlanned *prometheus.GaugeVec
	tilesFetched *prometheus.CounterVec
	tilesFailed  *prometheus.CounterVec
	bytesWritten prometheus.Counter
	fetchSeconds prometheus.Histogram
	georefTotal  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tilesPlanned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tiles_planned",
			Help:      "Number of tiles enumerated for the job.",
		}, []string{"zoom"}),
		tilesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_fetched_total",
			Help:      "Tiles downloaded and written to disk.",
		}, []string{"zoom"}),
		tilesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_failed_total",
			Help:      "Tiles that could not be downloaded, by reason.",
		}, []string{"zoom", "reason"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_bytes_written_total",
			Help:      "Bytes of tile data written to disk.",
		}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_fetch_duration_seconds",
			Help:      "Duration of a single tile request.",
			Buckets:   prometheus.DefBuckets,
		}),
		georefTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_georeferenced_total",
			Help:      "Georeferenced rasters written, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.tilesPlanned, m.tilesFetched, m.tilesFailed, m.bytesWritten, m.fetchSeconds, m.georefTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// All recorders are no-ops on a nil *Metrics so callers can run without metrics.

func (m *Metrics) Planned(zoom uint, n int) {
	if m == nil {
		return
	}
	m.tilesPlanned.WithLabelValues(zoomLabel(zoom)).Set(float64(n))
}

func (m *Metrics) Fetched(zoom uint, bytes int, seconds float64) {
	if m == nil {
		return
	}
	m.tilesFetched.WithLabelValues(zoomLabel(zoom)).Inc()
	m.bytesWritten.Add(float64(bytes))
	m.fetchSeconds.Observe(seconds)
}

func (m *Metrics) Failed(zoom uint, reason string) {
	if m == nil {
		return
	}
	m.tilesFailed.WithLabelValues(zoomLabel(zoom), reason).Inc()
}

func (m *Metrics) Georeferenced(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.georefTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the text exposition format, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func zoomLabel(zoom uint) string {
	return strconv.FormatUint(uint64(zoom), 10)
}
