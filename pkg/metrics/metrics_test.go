package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_NilSafe(t *testing.T) {
	var p *Pipeline
	p.ObserveNormalized(3, 1)
	p.ObserveUnclassified("browser")
	p.ObserveRecordError()
	p.ObserveRun("ok")
	p.ObserveStage("score", time.Millisecond)
	p.ObserveResult(1, 0, []int{1})
}

func TestPipeline_Counters(t *testing.T) {
	p := NewPipeline(nil)

	p.ObserveNormalized(10, 2)
	p.ObserveNormalized(5, 0)
	p.ObserveUnclassified("country")
	p.ObserveUnclassified("country")
	p.ObserveRecordError()
	p.ObserveRun("ok")

	assert.Equal(t, 15.0, testutil.ToFloat64(p.RecordsNormalized))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.TimestampParseFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.UnclassifiedSignals.WithLabelValues("country")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.RecordErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Runs.WithLabelValues("ok")))
}

func TestPipeline_ObserveResultResetsClusters(t *testing.T) {
	p := NewPipeline(nil)

	p.ObserveResult(10, 1, []int{4, 3, 3})
	assert.Equal(t, 3, testutil.CollectAndCount(p.ClusterSize))

	p.ObserveResult(4, 0, []int{2, 2})
	assert.Equal(t, 2, testutil.CollectAndCount(p.ClusterSize))
	assert.Equal(t, 4.0, testutil.ToFloat64(p.Addresses))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.AnomalousAddresses))
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)
	p.ObserveNormalized(7, 0)
	p.ObserveStage("aggregate", 2*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	out := buf.String()
	assert.Contains(t, out, "trafficlens_ingest_records_total 7")
	assert.Contains(t, out, `trafficlens_analysis_stage_duration_seconds_count{stage="aggregate"} 1`)
}
