package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/pkg/accesslog"
)

func TestBreakdown(t *testing.T) {
	records := []accesslog.NormalizedRecord{
		recUA("200.81.1.1", "/home", 10, chromeUA),
		recUA("200.81.1.1", "/static/app.js", 10, chromeUA),
		recUA("190.1.1.1", "/home", 22, iphoneUA),
		recUA("186.1.1.1", "/about", 22, firefoxUA),
		untimed("8.8.8.8", "/home"),
	}
	b := Breakdown(records)

	assert.Equal(t, 2, b.Hourly[10])
	assert.Equal(t, 2, b.Hourly[22])
	total := 0
	for _, n := range b.Hourly {
		total += n
	}
	assert.Equal(t, 4, total)

	assert.Equal(t, []Count{{"Argentina", 2}, {"Chile", 1}, {"Colombia", 1}, {"Other", 1}}, b.Countries)
	assert.Equal(t, []Count{{"Desktop", 4}, {"Mobile", 1}}, b.Devices)
	assert.Equal(t, []Count{{"Chrome", 3}, {"Firefox", 1}, {"Safari", 1}}, b.Browsers)
	assert.Equal(t, []Count{{"/home", 3}, {"/about", 1}}, b.TopPages)

	require.Len(t, b.Weekdays, 7)
	assert.Equal(t, "Monday", b.Weekdays[0].Label)
	assert.Equal(t, Count{"Sunday", 4}, b.Weekdays[6])
}

func TestBreakdown_TopPagesLimit(t *testing.T) {
	var records []accesslog.NormalizedRecord
	for i := 0; i < 15; i++ {
		for j := 0; j <= i; j++ {
			records = append(records, rec("a", fmt.Sprintf("/p%02d", i), 1))
		}
	}
	b := Breakdown(records)
	require.Len(t, b.TopPages, TopPagesLimit)
	assert.Equal(t, Count{"/p14", 15}, b.TopPages[0])
	assert.Equal(t, Count{"/p05", 6}, b.TopPages[TopPagesLimit-1])
}

func TestBreakdown_Empty(t *testing.T) {
	b := Breakdown(nil)
	assert.Empty(t, b.Countries)
	assert.Empty(t, b.TopPages)
	assert.Len(t, b.Weekdays, 7)
}

func TestCount_Share(t *testing.T) {
	assert.Equal(t, 0.0, Count{"x", 3}.Share(0))
	assert.InDelta(t, 75, Count{"x", 3}.Share(4), 1e-9)
}

func TestReport(t *testing.T) {
	records := outlierFixture()
	table := Aggregate(records)
	table.rows[len(table.rows)-1].IsAnomalous = true
	out := Report(Summarize(records, table), Breakdown(records))

	assert.Contains(t, out, "unique addresses:      10")
	assert.Contains(t, out, "top browser:           Chrome")
	assert.Contains(t, out, "1 suspicious addresses")
	assert.Contains(t, out, "most requested page")

	empty := Report(Summarize(nil, Aggregate(nil)), Breakdown(nil))
	assert.Contains(t, empty, "peak hour:             N/A")
	assert.NotContains(t, empty, "Security")
}
