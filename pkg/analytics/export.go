package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// AnomaliesCSVHeader is the header row written by WriteAnomaliesCSV.
var AnomaliesCSVHeader = []string{"address", "total_requests", "unique_paths", "unique_hours", "is_anomalous", "cluster_id"}

// WriteAnomaliesCSV exports the anomalous rows of t. Unassigned clusters are written as empty cells.
func WriteAnomaliesCSV(w io.Writer, t *FeatureTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AnomaliesCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range t.Anomalous() {
		cluster := ""
		if r.ClusterID != Unassigned {
			cluster = strconv.Itoa(r.ClusterID)
		}
		row := []string{
			r.Address,
			strconv.Itoa(r.TotalRequests),
			strconv.Itoa(r.UniquePaths),
			strconv.Itoa(r.UniqueHours),
			strconv.FormatBool(r.IsAnomalous),
			cluster,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", r.Address, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
