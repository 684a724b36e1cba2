package analytics

import (
	"fmt"
	"strings"
)

// Report renders the executive summary printed after an analysis run.
func Report(s Summary, b TrafficBreakdown) string {
	var sb strings.Builder
	m := map[string]string{}
	for _, kv := range s.Metrics() {
		m[kv.Name] = kv.Value
	}

	fmt.Fprintln(&sb, "General")
	fmt.Fprintf(&sb, "  unique addresses:      %d\n", s.UniqueAddresses)
	fmt.Fprintf(&sb, "  requests processed:    %d\n", s.TotalRecords)
	fmt.Fprintf(&sb, "  mobile traffic:        %s\n", m["mobile_percent"])
	fmt.Fprintf(&sb, "  anomalous addresses:   %s (%d)\n", m["anomaly_percent"], s.AnomalousAddresses)

	fmt.Fprintln(&sb, "Traffic profile")
	fmt.Fprintf(&sb, "  top browser:           %s\n", s.TopBrowser)
	fmt.Fprintf(&sb, "  top origin:            %s\n", s.TopCountry)
	fmt.Fprintf(&sb, "  peak hour:             %s\n", m["peak_hour"])
	if len(b.TopPages) > 0 {
		fmt.Fprintf(&sb, "  most requested page:   %s (%d)\n", b.TopPages[0].Label, b.TopPages[0].Count)
	}

	if s.AnomalousAddresses > 0 {
		fmt.Fprintln(&sb, "Security")
		fmt.Fprintf(&sb, "  %d suspicious addresses should be reviewed for bot mitigation\n", s.AnomalousAddresses)
	}
	return sb.String()
}
