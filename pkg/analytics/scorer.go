package analytics

import (
	"fmt"

	"trafficlens/pkg/ml"
	"trafficlens/shared/config"
)

// AnomalyScorer labels addresses whose feature vector is inconsistent with the bulk.
type AnomalyScorer struct {
	Model ml.OutlierModel
}

// NewOutlierModel builds the configured outlier model.
func NewOutlierModel(cfg config.Analysis) (ml.OutlierModel, error) {
	switch cfg.OutlierModel {
	case config.ModelIsolationForest, "":
		return ml.NewIsolationForest(cfg.Trees, cfg.MaxSamples, cfg.AnomalyFraction, cfg.Seed), nil
	case config.ModelLOF:
		return ml.NewLOFDetector(cfg.LOFNeighbors, cfg.AnomalyFraction), nil
	}
	return nil, &config.Error{Field: "outlier_model", Value: cfg.OutlierModel, Reason: "unknown model"}
}

func NewAnomalyScorer(cfg config.Analysis) (*AnomalyScorer, error) {
	m, err := NewOutlierModel(cfg)
	if err != nil {
		return nil, err
	}
	return &AnomalyScorer{Model: m}, nil
}

// Score standardizes the table with a scaler of its own and writes IsAnomalous on every row.
func (s *AnomalyScorer) Score(t *FeatureTable) error {
	if t.Len() == 0 {
		return nil
	}
	X, err := ml.NewStandardScaler().FitTransform(t.Matrix())
	if err != nil {
		return fmt.Errorf("standardize features: %w", err)
	}
	labels, err := s.Model.FitAndLabel(X)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Model.Name(), err)
	}
	if len(labels) != t.Len() {
		return fmt.Errorf("%s returned %d labels for %d addresses", s.Model.Name(), len(labels), t.Len())
	}
	for i, l := range labels {
		t.rows[i].IsAnomalous = l
	}
	return nil
}
