package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftahirops/perfdiag/model"
)

// WriteTextfile exports the run's averaged values and finding counts in the
// node-exporter textfile format.
func (r *Report) WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()

	values := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perfdiag",
		Name:      "metric_value",
		Help:      "Counter value averaged over the sampling window.",
	}, []string{"domain", "counter", "instance"})
	findings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perfdiag",
		Name:      "findings",
		Help:      "Bottlenecks detected in the last run by impact.",
	}, []string{"impact"})
	gaps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perfdiag",
		Name:      "collection_gaps",
		Help:      "Counters that could not be read in the last run.",
	}, []string{"domain"})
	incomplete := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "perfdiag",
		Name:      "run_incomplete",
		Help:      "1 when the last run was interrupted.",
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "perfdiag",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	reg.MustRegister(values, findings, gaps, incomplete, lastRun)

	for _, res := range r.results {
		for _, k := range res.Snapshot.Keys() {
			v, _ := res.Snapshot.Get(k.Counter, k.Instance)
			values.WithLabelValues(string(res.Domain), k.Counter, k.Instance).Set(v)
		}
		gaps.WithLabelValues(string(res.Domain)).Set(float64(len(res.Gaps)))
	}
	counts := r.Counts()
	for _, impact := range model.ImpactsBySeverity {
		findings.WithLabelValues(impact.String()).Set(float64(counts[impact]))
	}
	if r.incomplete {
		incomplete.Set(1)
	}
	lastRun.Set(float64(r.ended.Unix()))

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write textfile %s: %w", path, err)
	}
	return nil
}
