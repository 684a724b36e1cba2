package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// IsolationForest isolates points with random axis-aligned splits; points that
// are isolated after few splits are outliers. Training on n rows with T trees
// and sub-sample size psi costs O(T*psi*log psi); scoring costs O(n*T*log psi).
type IsolationForest struct {
	NumTrees      int
	MaxSamples    int
	Contamination float64
	Seed          int64

	trees      []*iNode
	sampleSize int
}

type iNode struct {
	size     int
	dim      int
	splitVal float64
	left     *iNode
	right    *iNode
}

func (n *iNode) leaf() bool { return n.left == nil && n.right == nil }

// NewIsolationForest: numTrees <= 0 defaults to 100, maxSamples <= 0 to 256.
func NewIsolationForest(numTrees, maxSamples int, contamination float64, seed int64) *IsolationForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &IsolationForest{
		NumTrees:      numTrees,
		MaxSamples:    maxSamples,
		Contamination: contamination,
		Seed:          seed,
	}
}

func (f *IsolationForest) Name() string { return "isolation-forest" }

// Fit builds the forest from a seeded generator, so equal input and seed give equal trees.
func (f *IsolationForest) Fit(X [][]float64) error {
	d, err := validateMatrix(X)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(f.Seed))
	n := len(X)
	f.sampleSize = f.MaxSamples
	if f.sampleSize > n {
		f.sampleSize = n
	}
	heightLimit := int(math.Ceil(math.Log2(math.Max(2, float64(f.sampleSize)))))

	f.trees = make([]*iNode, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		idx := rng.Perm(n)[:f.sampleSize]
		sample := make([][]float64, len(idx))
		for j, i := range idx {
			sample[j] = X[i]
		}
		f.trees[t] = buildTree(rng, sample, d, 0, heightLimit)
	}
	return nil
}

func buildTree(rng *rand.Rand, X [][]float64, d, depth, heightLimit int) *iNode {
	if len(X) <= 1 || depth >= heightLimit {
		return &iNode{size: len(X)}
	}

	// Only features that still vary can split this node.
	mins := make([]float64, d)
	maxs := make([]float64, d)
	copy(mins, X[0])
	copy(maxs, X[0])
	for _, row := range X[1:] {
		for j, v := range row {
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
	}
	candidates := make([]int, 0, d)
	for j := 0; j < d; j++ {
		if maxs[j] > mins[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &iNode{size: len(X)}
	}

	dim := candidates[rng.Intn(len(candidates))]
	split := mins[dim] + rng.Float64()*(maxs[dim]-mins[dim])

	left := make([][]float64, 0, len(X))
	right := make([][]float64, 0, len(X))
	for _, row := range X {
		if row[dim] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &iNode{size: len(X)}
	}
	return &iNode{
		size:     len(X),
		dim:      dim,
		splitVal: split,
		left:     buildTree(rng, left, d, depth+1, heightLimit),
		right:    buildTree(rng, right, d, depth+1, heightLimit),
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	return 2.0*(math.Log(float64(n-1))+0.5772156649) - 2.0*float64(n-1)/float64(n)
}

func pathLength(node *iNode, x []float64, depth int) float64 {
	if node.leaf() {
		return float64(depth) + averagePathLength(node.size)
	}
	if x[node.dim] < node.splitVal {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// Score returns the anomaly score in (0, 1]; higher means more anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += pathLength(t, x, 0)
	}
	mean := sum / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c <= 0 {
		c = 1
	}
	return math.Pow(2, -mean/c)
}

func (f *IsolationForest) Scores(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = f.Score(x)
	}
	return out
}

// FitAndLabel fits on X and flags the rows scoring above the contamination quantile.
func (f *IsolationForest) FitAndLabel(X [][]float64) ([]bool, error) {
	if err := validateContamination(f.Contamination); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return []bool{}, nil
	}
	if err := f.Fit(X); err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}
	return labelByContamination(f.Scores(X), f.Contamination), nil
}
