package metrics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "trafficlens"

// Pipeline holds the collectors updated by the normalizer and the analyzer.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	RecordsNormalized      prometheus.Counter
	TimestampParseFailures prometheus.Counter
	UnclassifiedSignals    *prometheus.CounterVec
	RecordErrors           prometheus.Counter

	Runs          *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	Addresses          prometheus.Gauge
	AnomalousAddresses prometheus.Gauge
	ClusterSize        *prometheus.GaugeVec
}

// NewPipeline creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		RecordsNormalized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "records_total",
			Help: "Access records normalized.",
		}),
		TimestampParseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "timestamp_parse_failures_total",
			Help: "Records kept with a null timestamp because the date could not be parsed.",
		}),
		UnclassifiedSignals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "unclassified_total",
			Help: "Records whose attribute fell back to the Other bucket.",
		}, []string{"attribute"}),
		RecordErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "record_errors_total",
			Help: "Raw records rejected for structural violations.",
		}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "runs_total",
			Help: "Analysis runs by outcome.",
		}, []string{"status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
		Addresses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "addresses",
			Help: "Distinct addresses in the last run.",
		}),
		AnomalousAddresses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "anomalous_addresses",
			Help: "Addresses flagged anomalous in the last run.",
		}),
		ClusterSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "cluster_size",
			Help: "Addresses per behavioral segment in the last run.",
		}, []string{"cluster"}),
	}
}

func (p *Pipeline) ObserveNormalized(records, parseFailures int) {
	if p == nil {
		return
	}
	p.RecordsNormalized.Add(float64(records))
	p.TimestampParseFailures.Add(float64(parseFailures))
}

func (p *Pipeline) ObserveUnclassified(attribute string) {
	if p == nil {
		return
	}
	p.UnclassifiedSignals.WithLabelValues(attribute).Inc()
}

func (p *Pipeline) ObserveRecordError() {
	if p == nil {
		return
	}
	p.RecordErrors.Inc()
}

func (p *Pipeline) ObserveRun(status string) {
	if p == nil {
		return
	}
	p.Runs.WithLabelValues(status).Inc()
}

func (p *Pipeline) ObserveStage(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveResult publishes the last run's address counts. sizes[i] is the size of cluster i.
func (p *Pipeline) ObserveResult(addresses, anomalous int, sizes []int) {
	if p == nil {
		return
	}
	p.Addresses.Set(float64(addresses))
	p.AnomalousAddresses.Set(float64(anomalous))
	p.ClusterSize.Reset()
	for i, n := range sizes {
		p.ClusterSize.WithLabelValues(strconv.Itoa(i)).Set(float64(n))
	}
}

// WriteText dumps every metric family gathered from g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
