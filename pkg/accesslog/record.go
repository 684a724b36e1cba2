package accesslog

import (
	"strings"
	"time"
)

// Keys of the raw upload format.
const (
	FieldTimestamp       = "fecha"
	FieldAddress         = "IP"
	FieldPath            = "url"
	FieldClientSignature = "user_agent"
)

// RequiredFields lists the raw keys every record is expected to carry.
var RequiredFields = []string{FieldTimestamp, FieldAddress, FieldPath, FieldClientSignature}

// Category values shared by every classifier.
const (
	Other   = "Other"
	Mobile  = "Mobile"
	Desktop = "Desktop"
)

// TimestampLayout accepts "25-02-2024 10:30:45AM" as well as unpadded day, month and hour.
const TimestampLayout = "2-1-2006 3:04:05PM"

// RawRecord is one decoded entry of the upload, keyed by the raw field names.
type RawRecord map[string]interface{}

// AccessRecord is a parsed raw entry. Timestamp is nil when the date could not be parsed.
type AccessRecord struct {
	Timestamp       *time.Time
	Address         string
	Path            string
	ClientSignature string
}

// NormalizedRecord is an AccessRecord enriched with derived categorical attributes.
// HourOfDay and DayOfWeek are nil exactly when Timestamp is nil.
type NormalizedRecord struct {
	AccessRecord

	Browser          string
	OSFamily         string
	DeviceClass      string
	IsStaticResource bool
	CountryBucket    string
	HourOfDay        *int
	DayOfWeek        *time.Weekday
}

// ParseTimestamp parses the day-month-year 12-hour format of the access logs.
// It returns nil instead of an error; unparseable dates degrade to a null timestamp.
func ParseTimestamp(s string) *time.Time {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
