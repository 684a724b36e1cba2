package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyInput        = errors.New("no data provided")
	ErrDimensionMismatch = errors.New("rows have different dimensions")
	ErrNonFinite         = errors.New("feature matrix contains NaN or Inf")
	ErrInvalidParameter  = errors.New("invalid model parameter")
)

// OutlierModel labels each row of a feature matrix as outlier (true) or inlier.
// Implementations must be deterministic for a fixed configuration.
type OutlierModel interface {
	Name() string
	FitAndLabel(X [][]float64) ([]bool, error)
}

// PartitionModel assigns each row of a feature matrix to a cluster in [0, k).
type PartitionModel interface {
	Name() string
	FitAndLabel(X [][]float64) ([]int, error)
}

// validateMatrix returns the common row width of X.
func validateMatrix(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyInput
	}
	d := len(X[0])
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), d, ErrDimensionMismatch)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("row %d: %w", i, ErrNonFinite)
			}
		}
	}
	return d, nil
}

func validateContamination(c float64) error {
	if !(c > 0 && c <= 0.5) {
		return fmt.Errorf("contamination %v not in (0, 0.5]: %w", c, ErrInvalidParameter)
	}
	return nil
}

// labelByContamination flags scores strictly above the (1-contamination) quantile,
// so roughly a contamination share of rows is flagged when scores are distinct.
// Higher score means more anomalous.
func labelByContamination(scores []float64, contamination float64) []bool {
	labels := make([]bool, len(scores))
	if len(scores) == 0 {
		return labels
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	threshold := quantile(sorted, 1-contamination)
	for i, s := range scores {
		labels[i] = s > threshold
	}
	return labels
}

// quantile uses linear interpolation between closest ranks on sorted data.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}
