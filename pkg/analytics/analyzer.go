package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trafficlens/pkg/accesslog"
	"trafficlens/pkg/metrics"
	"trafficlens/pkg/ml"
	otelobs "trafficlens/pkg/observability/otel"
	"trafficlens/pkg/structlog"
	"trafficlens/shared/config"
)

// Stage names used for spans, logs and the stage duration histogram.
const (
	StageAggregate = "aggregate"
	StageScore     = "score"
	StageSegment   = "segment"
	StageSummarize = "summarize"
)

// Analyzer runs aggregate, score, segment and summarize over one record set.
// It keeps only configuration; models and tables are created per call, so
// concurrent Analyze calls do not share mutable state.
type Analyzer struct {
	cfg   config.Analysis
	vocab accesslog.Vocabulary

	newOutlier   func(config.Analysis) (ml.OutlierModel, error)
	newPartition func(config.Analysis) ml.PartitionModel

	log     *structlog.Logger
	metrics *metrics.Pipeline
	tracer  trace.Tracer
}

type Option func(*Analyzer)

func WithLogger(l *structlog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

func WithMetrics(m *metrics.Pipeline) Option { return func(a *Analyzer) { a.metrics = m } }

func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithVocabulary sets the category order used to break mode ties.
func WithVocabulary(v accesslog.Vocabulary) Option { return func(a *Analyzer) { a.vocab = v } }

// WithOutlierModel replaces the configured outlier model. f is called once per run.
func WithOutlierModel(f func(config.Analysis) (ml.OutlierModel, error)) Option {
	return func(a *Analyzer) {
		if f != nil {
			a.newOutlier = f
		}
	}
}

// WithPartitionModel replaces k-means. f is called once per run.
func WithPartitionModel(f func(config.Analysis) ml.PartitionModel) Option {
	return func(a *Analyzer) {
		if f != nil {
			a.newPartition = f
		}
	}
}

// NewAnalyzer validates cfg before anything else; an invalid value yields a *config.Error.
func NewAnalyzer(cfg config.Analysis, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		cfg:        cfg,
		vocab:      accesslog.DefaultVocabulary(),
		newOutlier: NewOutlierModel,
		newPartition: func(c config.Analysis) ml.PartitionModel {
			return ml.NewKMeans(c.ClusterCount, c.KMeansInit, c.KMeansIter, c.Seed)
		},
		log:    structlog.Nop(),
		tracer: otelobs.Tracer("trafficlens/analytics"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Analyzer) Config() config.Analysis { return a.cfg }

// Analyze returns a feature table owned by the caller and the run summary.
func (a *Analyzer) Analyze(ctx context.Context, records []accesslog.NormalizedRecord) (*FeatureTable, *Summary, error) {
	runID := uuid.NewString()
	ctx, _ = structlog.GetOrCreateCorrelationID(ctx)
	log := a.log.WithContext(ctx).WithFields(structlog.Fields{"run_id": runID})

	ctx, span := a.tracer.Start(ctx, "analytics.Analyze", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("records", len(records)),
		attribute.Float64("anomaly_fraction", a.cfg.AnomalyFraction),
		attribute.Int("cluster_count", a.cfg.ClusterCount),
		attribute.Int64("seed", a.cfg.Seed),
		attribute.String("outlier_model", a.cfg.OutlierModel),
	))
	defer span.End()

	// Configuration is logged with the run id so results can be traced back to it.
	log.Info("analysis started", structlog.Fields{
		"records":          len(records),
		"anomaly_fraction": a.cfg.AnomalyFraction,
		"cluster_count":    a.cfg.ClusterCount,
		"seed":             a.cfg.Seed,
		"outlier_model":    a.cfg.OutlierModel,
	})

	table, summary, err := a.run(ctx, log, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.ObserveRun("error")
		log.Error("analysis failed", structlog.Fields{"error": err})
		return nil, nil, err
	}

	a.metrics.ObserveRun("ok")
	a.metrics.ObserveResult(table.Len(), summary.AnomalousAddresses, table.ClusterSizes(a.cfg.ClusterCount))
	span.SetAttributes(
		attribute.Int("addresses", table.Len()),
		attribute.Int("anomalous_addresses", summary.AnomalousAddresses),
	)
	log.Info("analysis complete", structlog.Fields{
		"addresses":           table.Len(),
		"anomalous_addresses": summary.AnomalousAddresses,
	})
	return table, summary, nil
}

func (a *Analyzer) run(ctx context.Context, log *structlog.Logger, records []accesslog.NormalizedRecord) (*FeatureTable, *Summary, error) {
	var table *FeatureTable
	if err := a.stage(ctx, log, StageAggregate, func() error {
		table = Aggregate(records)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	if err := a.stage(ctx, log, StageScore, func() error {
		model, err := a.newOutlier(a.cfg)
		if err != nil {
			return err
		}
		return (&AnomalyScorer{Model: model}).Score(table)
	}); err != nil {
		return nil, nil, err
	}

	if err := a.stage(ctx, log, StageSegment, func() error {
		seg := &Segmenter{Model: a.newPartition(a.cfg), K: a.cfg.ClusterCount}
		return seg.Segment(table)
	}); err != nil {
		return nil, nil, err
	}

	var summary Summary
	if err := a.stage(ctx, log, StageSummarize, func() error {
		summary = SummarizeWith(records, table, a.vocab)
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return table, &summary, nil
}

// stage runs fn inside its own span. A cancelled context stops the run between stages.
func (a *Analyzer) stage(ctx context.Context, log *structlog.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	_, span := a.tracer.Start(ctx, "analytics."+name)
	defer span.End()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	a.metrics.ObserveStage(name, elapsed)
	log.Debug("stage finished", structlog.Fields{"stage": name, "duration_ms": elapsed.Milliseconds()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
