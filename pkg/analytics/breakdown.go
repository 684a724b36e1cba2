package analytics

import (
	"time"

	"trafficlens/pkg/accesslog"
)

// TopPagesLimit caps TrafficBreakdown.TopPages.
const TopPagesLimit = 10

// Count is a label with its record count.
type Count struct {
	Label string
	Count int
}

// TrafficBreakdown holds the per-dimension record distributions of a run.
type TrafficBreakdown struct {
	Hourly     [24]int
	Countries  []Count
	Devices    []Count
	Browsers   []Count
	OSFamilies []Count
	// Weekdays runs Monday to Sunday and includes days without traffic.
	Weekdays []Count
	// TopPages lists the most requested non-static paths.
	TopPages []Count
}

func Breakdown(records []accesslog.NormalizedRecord) TrafficBreakdown {
	return BreakdownWith(records, accesslog.DefaultVocabulary())
}

// BreakdownWith orders each categorical distribution by count, ties broken by vocab order.
func BreakdownWith(records []accesslog.NormalizedRecord, vocab accesslog.Vocabulary) TrafficBreakdown {
	var b TrafficBreakdown
	countries := map[string]int{}
	devices := map[string]int{}
	browsers := map[string]int{}
	osFamilies := map[string]int{}
	pages := map[string]int{}
	var days [7]int

	for _, r := range records {
		countries[r.CountryBucket]++
		devices[r.DeviceClass]++
		browsers[r.Browser]++
		osFamilies[r.OSFamily]++
		if !r.IsStaticResource {
			pages[r.Path]++
		}
		if r.HourOfDay != nil {
			b.Hourly[*r.HourOfDay]++
		}
		if r.DayOfWeek != nil {
			days[*r.DayOfWeek]++
		}
	}

	b.Countries = rankLabels(countries, vocab.Countries)
	b.Devices = rankLabels(devices, vocab.Devices)
	b.Browsers = rankLabels(browsers, vocab.Browsers)
	b.OSFamilies = rankLabels(osFamilies, vocab.OSFamilies)

	for i := 0; i < 7; i++ {
		d := time.Weekday((i + 1) % 7)
		b.Weekdays = append(b.Weekdays, Count{Label: d.String(), Count: days[d]})
	}

	b.TopPages = rankLabels(pages, nil)
	if len(b.TopPages) > TopPagesLimit {
		b.TopPages = b.TopPages[:TopPagesLimit]
	}
	return b
}

// Share returns c as a percentage of total, or 0 when total is 0.
func (c Count) Share(total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(c.Count) / float64(total)
}
