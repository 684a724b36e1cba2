package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeans partitions rows into K clusters with Lloyd's algorithm seeded by
// k-means++. It restarts NInit times from one seeded generator and keeps the
// run with the lowest inertia.
type KMeans struct {
	K       int
	NInit   int
	MaxIter int
	Tol     float64
	Seed    int64

	centroids [][]float64
	inertia   float64
}

// NewKMeans: nInit <= 0 defaults to 10, maxIter <= 0 to 300.
func NewKMeans(k, nInit, maxIter int, seed int64) *KMeans {
	if nInit <= 0 {
		nInit = 10
	}
	if maxIter <= 0 {
		maxIter = 300
	}
	return &KMeans{K: k, NInit: nInit, MaxIter: maxIter, Tol: 1e-4, Seed: seed}
}

func (km *KMeans) Name() string { return "k-means" }

func (km *KMeans) Centroids() [][]float64 { return km.centroids }

// Inertia is the sum of squared distances of rows to their centroid.
func (km *KMeans) Inertia() float64 { return km.inertia }

// FitAndLabel returns one label per row in [0, K). Labels are renumbered in
// order of first appearance, so row 0 is always in cluster 0. With no more rows
// than clusters every row gets its own cluster.
func (km *KMeans) FitAndLabel(X [][]float64) ([]int, error) {
	if km.K < 1 {
		return nil, fmt.Errorf("k=%d: %w", km.K, ErrInvalidParameter)
	}
	if len(X) == 0 {
		return []int{}, nil
	}
	d, err := validateMatrix(X)
	if err != nil {
		return nil, err
	}
	n := len(X)

	if n <= km.K {
		labels := make([]int, n)
		km.centroids = make([][]float64, n)
		for i := range X {
			labels[i] = i
			km.centroids[i] = append([]float64(nil), X[i]...)
		}
		km.inertia = 0
		return labels, nil
	}

	tol := km.Tol * meanVariance(X, d)
	rng := rand.New(rand.NewSource(km.Seed))

	var bestLabels []int
	var bestCentroids [][]float64
	bestInertia := math.Inf(1)
	for run := 0; run < km.NInit; run++ {
		centroids := initPlusPlus(rng, X, km.K)
		labels, centroids, inertia := km.lloyd(X, centroids, tol)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
			bestCentroids = centroids
		}
	}

	labels, centroids := relabel(bestLabels, bestCentroids)
	km.centroids = centroids
	km.inertia = bestInertia
	return labels, nil
}

func (km *KMeans) lloyd(X [][]float64, centroids [][]float64, tol float64) ([]int, [][]float64, float64) {
	labels := make([]int, len(X))
	for iter := 0; iter < km.MaxIter; iter++ {
		assign(X, centroids, labels)
		next := recompute(X, labels, centroids)
		shift := 0.0
		for c := range centroids {
			shift += squaredDistance(centroids[c], next[c])
		}
		centroids = next
		if shift <= tol {
			break
		}
	}
	inertia := assign(X, centroids, labels)
	return labels, centroids, inertia
}

// assign sets each row to its nearest centroid and returns the inertia.
func assign(X [][]float64, centroids [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, x := range X {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if dist := squaredDistance(x, centroid); dist < bestDist {
				best, bestDist = c, dist
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// recompute averages each cluster. An emptied cluster takes the row farthest
// from its current centroid.
func recompute(X [][]float64, labels []int, old [][]float64) [][]float64 {
	k, d := len(old), len(X[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}
	for i, x := range X {
		c := labels[i]
		counts[c]++
		for j, v := range x {
			sums[c][j] += v
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			far, farDist := 0, -1.0
			for i, x := range X {
				if dist := squaredDistance(x, old[labels[i]]); dist > farDist {
					far, farDist = i, dist
				}
			}
			copy(sums[c], X[far])
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	return sums
}

// initPlusPlus picks the first centroid uniformly, then each next one with
// probability proportional to its squared distance from the nearest chosen one.
func initPlusPlus(rng *rand.Rand, X [][]float64, k int) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))

	dist := make([]float64, n)
	for i, x := range X {
		dist[i] = squaredDistance(x, centroids[0])
	}
	for len(centroids) < k {
		total := 0.0
		for _, v := range dist {
			total += v
		}
		next := rng.Intn(n)
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, v := range dist {
				acc += v
				if acc >= target && v > 0 {
					next = i
					break
				}
			}
		}
		c := append([]float64(nil), X[next]...)
		centroids = append(centroids, c)
		for i, x := range X {
			if dd := squaredDistance(x, c); dd < dist[i] {
				dist[i] = dd
			}
		}
	}
	return centroids
}

func meanVariance(X [][]float64, d int) float64 {
	if d == 0 {
		return 0
	}
	n := float64(len(X))
	total := 0.0
	for j := 0; j < d; j++ {
		mean := 0.0
		for _, x := range X {
			mean += x[j]
		}
		mean /= n
		v := 0.0
		for _, x := range X {
			v += (x[j] - mean) * (x[j] - mean)
		}
		total += v / n
	}
	return total / float64(d)
}

func relabel(labels []int, centroids [][]float64) ([]int, [][]float64) {
	mapping := make(map[int]int, len(centroids))
	out := make([]int, len(labels))
	ordered := make([][]float64, 0, len(centroids))
	for i, l := range labels {
		m, ok := mapping[l]
		if !ok {
			m = len(ordered)
			mapping[l] = m
			ordered = append(ordered, centroids[l])
		}
		out[i] = m
	}
	// Clusters that ended up without rows keep the trailing ids.
	for c := range centroids {
		if _, ok := mapping[c]; !ok {
			mapping[c] = len(ordered)
			ordered = append(ordered, centroids[c])
		}
	}
	return out, ordered
}
