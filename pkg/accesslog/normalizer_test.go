package accesslog

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/pkg/metrics"
)

func raw(fecha, ip, url, ua string) RawRecord {
	return RawRecord{FieldTimestamp: fecha, FieldAddress: ip, FieldPath: url, FieldClientSignature: ua}
}

func TestNormalize_ChromeDesktopScenario(t *testing.T) {
	out, err := Normalize([]RawRecord{
		raw("25-02-2024 10:30:45AM", "200.81.1.1", "/home", "Mozilla/5.0 (X11) AppleWebKit/537.36 Chrome/91"),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	r := out[0]
	assert.Equal(t, "Chrome", r.Browser)
	assert.Equal(t, Desktop, r.DeviceClass)
	assert.False(t, r.IsStaticResource)
	assert.Equal(t, "Argentina", r.CountryBucket)
	require.NotNil(t, r.HourOfDay)
	assert.Equal(t, 10, *r.HourOfDay)
	require.NotNil(t, r.DayOfWeek)
	assert.Equal(t, time.Sunday, *r.DayOfWeek)
	require.NotNil(t, r.Timestamp)
	assert.Equal(t, time.Date(2024, 2, 25, 10, 30, 45, 0, time.UTC), *r.Timestamp)
}

func TestNormalize_PreservesOrderAndKeepsBadTimestamps(t *testing.T) {
	in := []RawRecord{
		raw("not a date", "1.1.1.1", "/a", ""),
		raw("01-03-2024 11:00:00PM", "2.2.2.2", "/b", ""),
		raw("", "3.3.3.3", "/c", ""),
	}
	out, err := Normalize(in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"},
		[]string{out[0].Address, out[1].Address, out[2].Address})

	assert.Nil(t, out[0].Timestamp)
	assert.Nil(t, out[0].HourOfDay)
	assert.Nil(t, out[0].DayOfWeek)
	require.NotNil(t, out[1].HourOfDay)
	assert.Equal(t, 23, *out[1].HourOfDay)
	assert.Nil(t, out[2].Timestamp)
}

func TestNormalize_LenientMissingFields(t *testing.T) {
	out, err := Normalize([]RawRecord{{FieldAddress: "190.5.5.5"}, {FieldPath: nil}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Chile", out[0].CountryBucket)
	assert.Equal(t, Other, out[0].Browser)
	assert.Equal(t, Other, out[0].OSFamily)
	assert.Equal(t, Desktop, out[0].DeviceClass)
	assert.Equal(t, "", out[1].Address)
	assert.Equal(t, Other, out[1].CountryBucket)
}

func TestNormalize_StrictMissingField(t *testing.T) {
	n := NewNormalizer(WithStrictSchema(true))
	_, err := n.Normalize([]RawRecord{
		raw("25-02-2024 10:30:45AM", "1.1.1.1", "/", "ua"),
		{FieldTimestamp: "25-02-2024 10:30:45AM", FieldAddress: "1.1.1.1", FieldPath: "/"},
	})
	require.Error(t, err)

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 1, recErr.Index)
	assert.Equal(t, FieldClientSignature, recErr.Field)
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestNormalize_NonStringField(t *testing.T) {
	_, err := Normalize([]RawRecord{{FieldAddress: 12.5}})
	require.Error(t, err)

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 0, recErr.Index)
	assert.Equal(t, FieldAddress, recErr.Field)
	assert.True(t, errors.Is(err, ErrFieldType))
}

func TestNormalize_NilRecord(t *testing.T) {
	_, err := Normalize([]RawRecord{nil})
	assert.True(t, errors.Is(err, ErrNotObject))
}

func TestNormalize_Metrics(t *testing.T) {
	m := metrics.NewPipeline(nil)
	n := NewNormalizer(WithMetrics(m))

	_, err := n.Normalize([]RawRecord{
		raw("bad", "10.0.0.1", "/", "curl/8.0"),
		raw("25-02-2024 10:30:45AM", "200.81.0.1", "/", "Chrome Windows"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsNormalized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimestampParseFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnclassifiedSignals.WithLabelValues("browser")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnclassifiedSignals.WithLabelValues("country")))
}

func TestNormalizer_CustomRuleTables(t *testing.T) {
	n := NewNormalizer(
		WithBrowserRules(RuleTable{{"curl", "cli"}}),
		WithCountryClassifier(NewPrefixClassifier([]PrefixRule{{"10.", "lan"}})),
	)
	out, err := n.Normalize([]RawRecord{raw("", "10.1.2.3", "/", "curl/8.0")})
	require.NoError(t, err)
	assert.Equal(t, "cli", out[0].Browser)
	assert.Equal(t, "lan", out[0].CountryBucket)

	v := n.Vocabulary()
	assert.Equal(t, []string{"cli", Other}, v.Browsers)
	assert.Equal(t, []string{"lan", Other}, v.Countries)
}

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, []string{"Chrome", "Firefox", "Safari", "Edge", "Opera", Other}, v.Browsers)
	assert.Equal(t, []string{"Argentina", "Chile", "Brasil", "Colombia", "Uruguay", Other}, v.Countries)
	assert.Equal(t, []string{Desktop, Mobile}, v.Devices)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		hour int
		ok   bool
	}{
		{"25-02-2024 10:30:45AM", 10, true},
		{"25-02-2024 10:30:45PM", 22, true},
		{"25-02-2024 12:00:00AM", 0, true},
		{"5-2-2024 9:05:00pm", 21, true},
		{"2024-02-25 10:30:45", 0, false},
		{"25-02-2024 10:30:45", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := ParseTimestamp(tt.in)
		if !tt.ok {
			assert.Nil(t, got, tt.in)
			continue
		}
		require.NotNil(t, got, tt.in)
		assert.Equal(t, tt.hour, got.Hour(), tt.in)
	}
}

func TestDecodeRaw(t *testing.T) {
	recs, err := DecodeRaw(strings.NewReader(`[
		{"fecha": "25-02-2024 10:30:45AM", "IP": "200.81.123.45", "url": "/pagina-ejemplo", "user_agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"},
		{"fecha": "25-02-2024 10:31:22AM", "IP": "190.123.456.78", "url": "/otra-pagina", "user_agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X)"}
	]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "190.123.456.78", recs[1][FieldAddress])

	out, err := Normalize(recs)
	require.NoError(t, err)
	assert.Equal(t, "Windows", out[0].OSFamily)
	assert.Equal(t, Mobile, out[1].DeviceClass)
	assert.Equal(t, "Chile", out[1].CountryBucket)
}

func TestDecodeRaw_Errors(t *testing.T) {
	_, err := DecodeRaw(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)

	_, err = DecodeRaw(strings.NewReader(`[{"IP": "1.1.1.1"}, 42]`))
	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 1, recErr.Index)
	assert.True(t, errors.Is(err, ErrNotObject))
}
