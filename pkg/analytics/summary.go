package analytics

import (
	"fmt"
	"sort"
	"strconv"

	"trafficlens/pkg/accesslog"
)

// NotAvailable is reported for a mode over an empty record set.
const NotAvailable = "N/A"

// Summary is the headline view of one analysis run. Nil percentages and a nil
// PeakHour mean the value is undefined for the input, typically because it was empty.
type Summary struct {
	UniqueAddresses    int
	TotalRecords       int
	MobilePercent      *float64
	TopBrowser         string
	TopCountry         string
	AnomalyPercent     *float64
	AnomalousAddresses int
	PeakHour           *int
}

// Metric is one name/value line of a Summary.
type Metric struct {
	Name  string
	Value string
}

// Summarize computes the summary with the default category order for tie-breaks.
func Summarize(records []accesslog.NormalizedRecord, table *FeatureTable) Summary {
	return SummarizeWith(records, table, accesslog.DefaultVocabulary())
}

// SummarizeWith breaks mode ties by the order of vocab; labels missing from it
// rank after every listed label, alphabetically. Peak hour ties go to the earliest hour.
func SummarizeWith(records []accesslog.NormalizedRecord, table *FeatureTable, vocab accesslog.Vocabulary) Summary {
	s := Summary{
		TotalRecords: len(records),
		TopBrowser:   NotAvailable,
		TopCountry:   NotAvailable,
	}

	addrs := make(map[string]struct{}, table.Len())
	browsers := make(map[string]int)
	countries := make(map[string]int)
	var hours [24]int
	mobile, timed := 0, 0
	for _, r := range records {
		addrs[r.Address] = struct{}{}
		browsers[r.Browser]++
		countries[r.CountryBucket]++
		if r.DeviceClass == accesslog.Mobile {
			mobile++
		}
		if r.HourOfDay != nil {
			hours[*r.HourOfDay]++
			timed++
		}
	}
	s.UniqueAddresses = len(addrs)

	if len(records) > 0 {
		s.MobilePercent = percent(mobile, len(records))
		s.TopBrowser = mode(browsers, vocab.Browsers)
		s.TopCountry = mode(countries, vocab.Countries)
	}
	if timed > 0 {
		peak := 0
		for h := 1; h < 24; h++ {
			if hours[h] > hours[peak] {
				peak = h
			}
		}
		s.PeakHour = &peak
	}

	if n := table.Len(); n > 0 {
		s.AnomalousAddresses = len(table.Anomalous())
		s.AnomalyPercent = percent(s.AnomalousAddresses, n)
	}
	return s
}

func percent(part, whole int) *float64 {
	p := 100 * float64(part) / float64(whole)
	return &p
}

// mode returns the most frequent label, breaking ties by rank in order.
func mode(counts map[string]int, order []string) string {
	if len(counts) == 0 {
		return NotAvailable
	}
	ranked := rankLabels(counts, order)
	return ranked[0].Label
}

// rankLabels sorts labels by count descending, then by position in order,
// then alphabetically for labels outside order.
func rankLabels(counts map[string]int, order []string) []Count {
	pos := make(map[string]int, len(order))
	for i, l := range order {
		if _, ok := pos[l]; !ok {
			pos[l] = i
		}
	}
	rank := func(l string) int {
		if p, ok := pos[l]; ok {
			return p
		}
		return len(order)
	}
	out := make([]Count, 0, len(counts))
	for l, c := range counts {
		out = append(out, Count{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		ri, rj := rank(out[i].Label), rank(out[j].Label)
		if ri != rj {
			return ri < rj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Metrics lists the summary as display-ready name/value pairs.
func (s Summary) Metrics() []Metric {
	return []Metric{
		{"unique_addresses", strconv.Itoa(s.UniqueAddresses)},
		{"total_records", strconv.Itoa(s.TotalRecords)},
		{"mobile_percent", formatPercent(s.MobilePercent, 1)},
		{"top_browser", s.TopBrowser},
		{"top_country", s.TopCountry},
		{"anomaly_percent", formatPercent(s.AnomalyPercent, 2)},
		{"anomalous_addresses", strconv.Itoa(s.AnomalousAddresses)},
		{"peak_hour", formatHour(s.PeakHour)},
	}
}

func formatPercent(p *float64, decimals int) string {
	if p == nil {
		return NotAvailable
	}
	return strconv.FormatFloat(*p, 'f', decimals, 64) + "%"
}

func formatHour(h *int) string {
	if h == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%02d:00", *h)
}
