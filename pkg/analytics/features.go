// Package analytics turns normalized access records into per-address features,
// anomaly verdicts, behavioral segments and summary metrics.
package analytics

import (
	"sort"

	"trafficlens/pkg/accesslog"
)

// Unassigned marks an address the segmenter did not place in any cluster.
const Unassigned = -1

// AddressFeatures is the per-address feature row shared by the scorer and the segmenter.
type AddressFeatures struct {
	Address       string
	TotalRequests int
	UniquePaths   int
	UniqueHours   int
	IsAnomalous   bool
	ClusterID     int
}

// Vector returns (total_requests, unique_paths, unique_hours).
func (f AddressFeatures) Vector() []float64 {
	return []float64{float64(f.TotalRequests), float64(f.UniquePaths), float64(f.UniqueHours)}
}

// FeatureTable holds one row per distinct address, sorted by address.
// Each Aggregate call returns a new table; tables are never shared between runs.
type FeatureTable struct {
	rows  []AddressFeatures
	index map[string]int
}

// Aggregate groups records by address. unique_hours counts only records with a
// parsed timestamp.
func Aggregate(records []accesslog.NormalizedRecord) *FeatureTable {
	type acc struct {
		total int
		paths map[string]struct{}
		hours map[int]struct{}
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		g, ok := groups[r.Address]
		if !ok {
			g = &acc{paths: map[string]struct{}{}, hours: map[int]struct{}{}}
			groups[r.Address] = g
		}
		g.total++
		g.paths[r.Path] = struct{}{}
		if r.HourOfDay != nil {
			g.hours[*r.HourOfDay] = struct{}{}
		}
	}

	addrs := make([]string, 0, len(groups))
	for a := range groups {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	t := &FeatureTable{
		rows:  make([]AddressFeatures, len(addrs)),
		index: make(map[string]int, len(addrs)),
	}
	for i, a := range addrs {
		g := groups[a]
		t.rows[i] = AddressFeatures{
			Address:       a,
			TotalRequests: g.total,
			UniquePaths:   len(g.paths),
			UniqueHours:   len(g.hours),
			ClusterID:     Unassigned,
		}
		t.index[a] = i
	}
	return t
}

func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func (t *FeatureTable) Get(address string) (AddressFeatures, bool) {
	if t == nil {
		return AddressFeatures{}, false
	}
	i, ok := t.index[address]
	if !ok {
		return AddressFeatures{}, false
	}
	return t.rows[i], true
}

// Rows returns a copy of the table rows in address order.
func (t *FeatureTable) Rows() []AddressFeatures {
	if t == nil {
		return nil
	}
	return append([]AddressFeatures(nil), t.rows...)
}

// Matrix returns the feature vectors in row order.
func (t *FeatureTable) Matrix() [][]float64 {
	X := make([][]float64, t.Len())
	for i := range X {
		X[i] = t.rows[i].Vector()
	}
	return X
}

// Anomalous returns the rows flagged by the scorer.
func (t *FeatureTable) Anomalous() []AddressFeatures {
	var out []AddressFeatures
	for _, r := range t.Rows() {
		if r.IsAnomalous {
			out = append(out, r)
		}
	}
	return out
}

// ClusterSizes counts rows per cluster id in [0, k); unassigned rows are skipped.
func (t *FeatureTable) ClusterSizes(k int) []int {
	sizes := make([]int, k)
	for _, r := range t.Rows() {
		if r.ClusterID >= 0 && r.ClusterID < k {
			sizes[r.ClusterID]++
		}
	}
	return sizes
}
