package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sparring"

// counterDesc pairs a metric descriptor with its snapshot field.
type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

// Exporter exposes a Collector's snapshot as Prometheus counters labeled
// with the run dimensions.
type Exporter struct {
	collector *Collector
	counters  []counterDesc
}

var dimensionLabels = []string{"mode", "storage_backend", "run_id"}

func newCounter(subsystem, name, help string, value func(Snapshot) int64) counterDesc {
	return counterDesc{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, name),
			help, dimensionLabels, nil,
		),
		value: value,
	}
}

// NewExporter creates an exporter over c.
func NewExporter(c *Collector) *Exporter {
	return &Exporter{
		collector: c,
		counters: []counterDesc{
			newCounter("run", "started_total", "Runs started", func(s Snapshot) int64 { return s.RunsStarted }),
			newCounter("run", "completed_total", "Runs completed with a verdict or dataset", func(s Snapshot) int64 { return s.RunsCompleted }),
			newCounter("run", "failed_total", "Runs stopped by a failure", func(s Snapshot) int64 { return s.RunsFailed }),
			newCounter("link", "spawned_total", "Engine processes started", func(s Snapshot) int64 { return s.LinksSpawned }),
			newCounter("link", "spawn_failures_total", "Engine processes that failed to start", func(s Snapshot) int64 { return s.LinkSpawnFailures }),
			newCounter("link", "failures_total", "Workers stopped by protocol or stream failures", func(s Snapshot) int64 { return s.LinkFailures }),
			newCounter("game", "played_total", "Games started", func(s Snapshot) int64 { return s.GamesPlayed }),
			newCounter("game", "capped_total", "Games stopped by the ply cap", func(s Snapshot) int64 { return s.GamesCapped }),
			newCounter("game", "plies_checked_total", "Positions compared across engines", func(s Snapshot) int64 { return s.PliesChecked }),
			newCounter("game", "divergences_total", "Divergent verdicts", func(s Snapshot) int64 { return s.Divergences }),
			newCounter("rows", "kept_total", "Rows passing the quiescence filter", func(s Snapshot) int64 { return s.RowsKept }),
			newCounter("rows", "filtered_total", "Positions rejected by the quiescence filter", func(s Snapshot) int64 { return s.RowsFiltered }),
			newCounter("rows", "persisted_total", "Rows persisted", func(s Snapshot) int64 { return s.RowsPersisted }),
			newCounter("rows", "persist_failures_total", "Rows rejected by persistence", func(s Snapshot) int64 { return s.RowsPersistFailure }),
			newCounter("lode", "write_success_total", "Successful Lode write calls", func(s Snapshot) int64 { return s.LodeWriteSuccess }),
			newCounter("lode", "write_failure_total", "Failed Lode write calls", func(s Snapshot) int64 { return s.LodeWriteFailure }),
			newCounter("diag", "frames_written_total", "Diagnostic frames archived", func(s Snapshot) int64 { return s.DiagFramesWritten }),
		},
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.collector.Snapshot()
	for _, c := range e.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(s)),
			s.Mode, s.StorageBackend, s.RunID)
	}
}

var _ prometheus.Collector = (*Exporter)(nil)

// Handler returns an HTTP handler serving c's metrics on a private registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewExporter(c)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
