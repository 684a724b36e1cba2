package analytics

import (
	"fmt"
	"time"

	"trafficlens/pkg/accesslog"
)

var normalizer = accesslog.NewNormalizer()

const chromeUA = "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/91"

func rec(addr, path string, hour int) accesslog.NormalizedRecord {
	return recUA(addr, path, hour, chromeUA)
}

func recUA(addr, path string, hour int, ua string) accesslog.NormalizedRecord {
	ts := time.Date(2024, 2, 25, hour, 30, 0, 0, time.UTC)
	return normalizer.Classify(accesslog.AccessRecord{
		Timestamp:       &ts,
		Address:         addr,
		Path:            path,
		ClientSignature: ua,
	})
}

func untimed(addr, path string) accesslog.NormalizedRecord {
	return normalizer.Classify(accesslog.AccessRecord{Address: addr, Path: path, ClientSignature: chromeUA})
}

// outlierFixture has nine addresses with about five requests each and one
// address, 10.0.0.99, with fifty requests spread over many pages and hours.
func outlierFixture() []accesslog.NormalizedRecord {
	var out []accesslog.NormalizedRecord
	for a := 0; a < 9; a++ {
		addr := fmt.Sprintf("10.0.0.%d", a+1)
		n := 4 + a%3
		for i := 0; i < n; i++ {
			out = append(out, rec(addr, fmt.Sprintf("/page/%d", i%3), 9+i%2))
		}
	}
	for i := 0; i < 50; i++ {
		out = append(out, rec("10.0.0.99", fmt.Sprintf("/scan/%d", i%30), i%20))
	}
	return out
}

// populationFixture spreads 120 addresses over three request-volume profiles.
func populationFixture() []accesslog.NormalizedRecord {
	var out []accesslog.NormalizedRecord
	profiles := []struct{ requests, paths, hours int }{{3, 2, 1}, {20, 10, 6}, {60, 5, 18}}
	for a := 0; a < 120; a++ {
		p := profiles[a%3]
		addr := fmt.Sprintf("172.16.%d.%d", a/256, a%256)
		extra := a % 4
		for i := 0; i < p.requests+extra; i++ {
			out = append(out, rec(addr, fmt.Sprintf("/p/%d", i%(p.paths+extra%2)), i%p.hours))
		}
	}
	return out
}
