package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, quantile(sorted, 0))
	assert.Equal(t, 4.0, quantile(sorted, 1))
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-12)
	assert.InDelta(t, 3.85, quantile(sorted, 0.95), 1e-12)
	assert.Equal(t, 7.0, quantile([]float64{7}, 0.3))
}

func TestLabelByContamination(t *testing.T) {
	scores := []float64{0.1, 0.9, 0.2, 0.3, 0.15, 0.25, 0.12, 0.11, 0.18, 0.22}
	labels := labelByContamination(scores, 0.1)
	assert.Equal(t, []bool{false, true, false, false, false, false, false, false, false, false}, labels)

	// Equal scores never exceed their own quantile.
	flat := labelByContamination([]float64{0.5, 0.5, 0.5}, 0.5)
	assert.Equal(t, []bool{false, false, false}, flat)

	assert.Empty(t, labelByContamination(nil, 0.1))
}

func TestValidateMatrix(t *testing.T) {
	_, err := validateMatrix(nil)
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = validateMatrix([][]float64{{1, 2}, {3}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = validateMatrix([][]float64{{1, math.NaN()}})
	assert.True(t, errors.Is(err, ErrNonFinite))

	d, err := validateMatrix([][]float64{{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, d)
}

func TestModelsSatisfyInterfaces(t *testing.T) {
	var _ OutlierModel = NewIsolationForest(10, 16, 0.1, 1)
	var _ OutlierModel = NewLOFDetector(5, 0.1)
	var _ PartitionModel = NewKMeans(3, 1, 10, 1)
}
