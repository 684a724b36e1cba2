package ml

import (
	"fmt"
	"sort"
)

// LOFDetector implements Local Outlier Factor anomaly detection.
// More robust to local density variations than global methods; the whole
// batch is scored against itself, O(n^2) in the number of rows.
type LOFDetector struct {
	K             int // number of neighbors
	Contamination float64
}

// NewLOFDetector creates a new LOF detector.
// k: number of neighbors (typically 5-20), capped at n-1 when scoring.
func NewLOFDetector(k int, contamination float64) *LOFDetector {
	return &LOFDetector{K: k, Contamination: contamination}
}

func (lof *LOFDetector) Name() string { return "local-outlier-factor" }

type neighbor struct {
	idx  int
	dist float64
}

// Scores returns the LOF of every row. Values near 1 are inliers; larger values
// sit in sparser regions than their neighbors.
func (lof *LOFDetector) Scores(X [][]float64) ([]float64, error) {
	if _, err := validateMatrix(X); err != nil {
		return nil, err
	}
	if lof.K < 1 {
		return nil, fmt.Errorf("k=%d: %w", lof.K, ErrInvalidParameter)
	}
	n := len(X)
	scores := make([]float64, n)
	if n < 2 {
		for i := range scores {
			scores[i] = 1
		}
		return scores, nil
	}
	k := lof.K
	if k > n-1 {
		k = n - 1
	}

	// k nearest neighbors of each row, ties broken by row order.
	neighbors := make([][]neighbor, n)
	kDist := make([]float64, n)
	for i := 0; i < n; i++ {
		all := make([]neighbor, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				all = append(all, neighbor{idx: j, dist: euclideanDistance(X[i], X[j])})
			}
		}
		sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
		neighbors[i] = all[:k]
		kDist[i] = all[k-1].dist
	}

	// Local reachability density.
	lrd := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, nb := range neighbors[i] {
			reach := nb.dist
			if kDist[nb.idx] > reach {
				reach = kDist[nb.idx]
			}
			sum += reach
		}
		lrd[i] = 1.0 / (sum/float64(k) + 1e-10)
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, nb := range neighbors[i] {
			sum += lrd[nb.idx]
		}
		scores[i] = sum / float64(k) / lrd[i]
	}
	return scores, nil
}

// FitAndLabel flags the rows whose LOF lies above the contamination quantile.
func (lof *LOFDetector) FitAndLabel(X [][]float64) ([]bool, error) {
	if err := validateContamination(lof.Contamination); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return []bool{}, nil
	}
	scores, err := lof.Scores(X)
	if err != nil {
		return nil, fmt.Errorf("score lof: %w", err)
	}
	return labelByContamination(scores, lof.Contamination), nil
}
