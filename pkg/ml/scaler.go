package ml

import (
	"fmt"
	"math"
)

// StandardScaler standardizes columns to zero mean and unit (population) variance.
// Columns with zero variance, which includes every column of a single-row fit,
// keep a scale of 1 so they come out zero-centered instead of dividing by zero.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

func (s *StandardScaler) Fit(X [][]float64) error {
	d, err := validateMatrix(X)
	if err != nil {
		return err
	}
	n := float64(len(X))
	s.mean = make([]float64, d)
	s.scale = make([]float64, d)

	for _, row := range X {
		for j, v := range row {
			s.mean[j] += v
		}
	}
	for j := range s.mean {
		s.mean[j] /= n
	}

	variance := make([]float64, d)
	for _, row := range X {
		for j, v := range row {
			diff := v - s.mean[j]
			variance[j] += diff * diff
		}
	}
	for j := range variance {
		std := math.Sqrt(variance[j] / n)
		if std <= 1e-12*math.Max(1, math.Abs(s.mean[j])) {
			std = 1
		}
		s.scale[j] = std
	}
	return nil
}

func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if len(s.mean) == 0 {
		return nil, fmt.Errorf("scaler not fitted")
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("row %d has %d features, scaler fitted on %d: %w", i, len(row), len(s.mean), ErrDimensionMismatch)
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *StandardScaler) Mean() []float64  { return append([]float64(nil), s.mean...) }
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }
