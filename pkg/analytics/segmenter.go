package analytics

import (
	"fmt"
	"math"

	"trafficlens/pkg/ml"
	"trafficlens/shared/config"
)

// Segmenter assigns addresses to behavioral clusters. The cluster count is
// whatever the configuration says; it is never estimated from the data.
type Segmenter struct {
	Model ml.PartitionModel
	K     int
}

func NewSegmenter(cfg config.Analysis) *Segmenter {
	return &Segmenter{
		Model: ml.NewKMeans(cfg.ClusterCount, cfg.KMeansInit, cfg.KMeansIter, cfg.Seed),
		K:     cfg.ClusterCount,
	}
}

// Segment writes ClusterID for every row with finite features. Other rows, and
// every row when segmentation fails, are left Unassigned.
func (s *Segmenter) Segment(t *FeatureTable) error {
	for i := range t.rowsOrNil() {
		t.rows[i].ClusterID = Unassigned
	}
	if t.Len() == 0 {
		return nil
	}

	X := t.Matrix()
	eligible := make([]int, 0, len(X))
	for i, x := range X {
		if finite(x) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	subset := make([][]float64, len(eligible))
	for j, i := range eligible {
		subset[j] = X[i]
	}

	scaled, err := ml.NewStandardScaler().FitTransform(subset)
	if err != nil {
		return fmt.Errorf("standardize features: %w", err)
	}
	labels, err := s.Model.FitAndLabel(scaled)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Model.Name(), err)
	}
	if len(labels) != len(eligible) {
		return fmt.Errorf("%s returned %d labels for %d addresses", s.Model.Name(), len(labels), len(eligible))
	}
	for _, l := range labels {
		if l < 0 || (s.K > 0 && l >= s.K) {
			return fmt.Errorf("%s returned cluster %d outside [0,%d)", s.Model.Name(), l, s.K)
		}
	}
	for j, i := range eligible {
		t.rows[i].ClusterID = labels[j]
	}
	return nil
}

func (t *FeatureTable) rowsOrNil() []AddressFeatures {
	if t == nil {
		return nil
	}
	return t.rows
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
