package accesslog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{
	"timestamp", "address", "path", "client_signature",
	"browser", "os_family", "device_class", "is_static_resource",
	"country_bucket", "hour_of_day", "day_of_week",
}

const csvTimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes the normalized table as UTF-8 CSV with a header row.
// Null timestamps and their derived fields are written as empty cells.
func WriteCSV(w io.Writer, records []NormalizedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(csvRow(r)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r NormalizedRecord) []string {
	var ts, hour, day string
	if r.Timestamp != nil {
		ts = r.Timestamp.Format(csvTimeLayout)
	}
	if r.HourOfDay != nil {
		hour = strconv.Itoa(*r.HourOfDay)
	}
	if r.DayOfWeek != nil {
		day = r.DayOfWeek.String()
	}
	return []string{
		ts, r.Address, r.Path, r.ClientSignature,
		r.Browser, r.OSFamily, r.DeviceClass, strconv.FormatBool(r.IsStaticResource),
		r.CountryBucket, hour, day,
	}
}
