package accesslog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"trafficlens/pkg/metrics"
	"trafficlens/pkg/structlog"
)

var (
	// ErrMissingField is reported in strict mode when a required key is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrFieldType is reported when a field holds something other than a string.
	ErrFieldType = errors.New("field is not a string")
	// ErrNotObject is reported when an upload entry is not a JSON object.
	ErrNotObject = errors.New("record is not an object")
)

// RecordError identifies the raw record and field that broke the input contract.
type RecordError struct {
	Index int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d field %q: %v", e.Index, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Vocabulary lists the category values each classifier can produce, in the
// order used to break ties between equally frequent values.
type Vocabulary struct {
	Browsers   []string
	OSFamilies []string
	Devices    []string
	Countries  []string
}

// Normalizer turns raw records into NormalizedRecords. It holds only immutable
// rule tables and is safe for concurrent use.
type Normalizer struct {
	browsers   RuleTable
	osFamilies RuleTable
	mobile     []string
	static     []string
	country    CountryClassifier
	strict     bool

	metrics *metrics.Pipeline
	log     *structlog.Logger
}

type Option func(*Normalizer)

func WithBrowserRules(t RuleTable) Option { return func(n *Normalizer) { n.browsers = t } }
func WithOSRules(t RuleTable) Option      { return func(n *Normalizer) { n.osFamilies = t } }

func WithMobileIndicators(ind []string) Option { return func(n *Normalizer) { n.mobile = ind } }

func WithStaticExtensions(ext []string) Option { return func(n *Normalizer) { n.static = ext } }

// WithCountryClassifier swaps the geographic bucketing strategy.
func WithCountryClassifier(c CountryClassifier) Option {
	return func(n *Normalizer) {
		if c != nil {
			n.country = c
		}
	}
}

// WithStrictSchema makes absent required keys a RecordError instead of an empty string.
func WithStrictSchema(strict bool) Option { return func(n *Normalizer) { n.strict = strict } }

func WithMetrics(m *metrics.Pipeline) Option { return func(n *Normalizer) { n.metrics = m } }

func WithLogger(l *structlog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.log = l
		}
	}
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		browsers:   DefaultBrowserRules,
		osFamilies: DefaultOSRules,
		mobile:     DefaultMobileIndicators,
		static:     DefaultStaticExtensions,
		country:    NewPrefixClassifier(DefaultCountryRules),
		log:        structlog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize is a convenience wrapper around a default Normalizer.
func Normalize(raw []RawRecord) ([]NormalizedRecord, error) {
	return NewNormalizer().Normalize(raw)
}

// Normalize converts every raw record, preserving input order. Field-level problems
// (bad dates, unmatched categories) are defaulted; structural violations abort
// with a *RecordError naming the offending record.
func (n *Normalizer) Normalize(raw []RawRecord) ([]NormalizedRecord, error) {
	out := make([]NormalizedRecord, 0, len(raw))
	parseFailures := 0
	for i, r := range raw {
		rec, err := n.parse(i, r)
		if err != nil {
			n.metrics.ObserveRecordError()
			n.log.Warn("rejected raw record", structlog.Fields{"index": i, "error": err})
			return nil, err
		}
		nr := n.Classify(rec)
		if nr.Timestamp == nil {
			parseFailures++
		}
		out = append(out, nr)
	}
	n.metrics.ObserveNormalized(len(out), parseFailures)
	if parseFailures > 0 {
		n.log.Debug("records with unparseable timestamps kept", structlog.Fields{"count": parseFailures})
	}
	return out, nil
}

func (n *Normalizer) parse(index int, r RawRecord) (AccessRecord, error) {
	if r == nil {
		return AccessRecord{}, &RecordError{Index: index, Err: ErrNotObject}
	}
	vals := make(map[string]string, len(RequiredFields))
	for _, f := range RequiredFields {
		v, ok := r[f]
		if !ok || v == nil {
			if n.strict {
				return AccessRecord{}, &RecordError{Index: index, Field: f, Err: ErrMissingField}
			}
			continue
		}
		s, ok := v.(string)
		if !ok {
			return AccessRecord{}, &RecordError{Index: index, Field: f, Err: fmt.Errorf("%w: got %T", ErrFieldType, v)}
		}
		vals[f] = s
	}
	return AccessRecord{
		Timestamp:       ParseTimestamp(vals[FieldTimestamp]),
		Address:         vals[FieldAddress],
		Path:            vals[FieldPath],
		ClientSignature: vals[FieldClientSignature],
	}, nil
}

// Classify derives the categorical attributes of a parsed record.
func (n *Normalizer) Classify(rec AccessRecord) NormalizedRecord {
	nr := NormalizedRecord{
		AccessRecord:     rec,
		Browser:          n.browsers.Classify(rec.ClientSignature),
		OSFamily:         n.osFamilies.Classify(rec.ClientSignature),
		DeviceClass:      deviceClass(rec.ClientSignature, n.mobile),
		IsStaticResource: isStaticResource(rec.Path, n.static),
		CountryBucket:    n.country.Classify(rec.Address),
	}
	if rec.Timestamp != nil {
		h := rec.Timestamp.Hour()
		d := rec.Timestamp.Weekday()
		nr.HourOfDay = &h
		nr.DayOfWeek = &d
	}
	if nr.Browser == Other {
		n.metrics.ObserveUnclassified("browser")
	}
	if nr.OSFamily == Other {
		n.metrics.ObserveUnclassified("os")
	}
	if nr.CountryBucket == Other {
		n.metrics.ObserveUnclassified("country")
	}
	return nr
}

// Vocabulary reports the configured category orders.
func (n *Normalizer) Vocabulary() Vocabulary {
	v := Vocabulary{
		Browsers:   n.browsers.Labels(),
		OSFamilies: n.osFamilies.Labels(),
		Devices:    []string{Desktop, Mobile},
	}
	if l, ok := n.country.(Labeler); ok {
		v.Countries = l.Labels()
	}
	return v
}

// DefaultVocabulary is the vocabulary of a Normalizer built without options.
func DefaultVocabulary() Vocabulary {
	return NewNormalizer().Vocabulary()
}

// DecodeRaw reads the upload format: a JSON array of objects.
func DecodeRaw(r io.Reader) ([]RawRecord, error) {
	var entries []json.RawMessage
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode access log: %w", err)
	}
	out := make([]RawRecord, len(entries))
	for i, e := range entries {
		var rec map[string]interface{}
		if err := json.Unmarshal(e, &rec); err != nil || rec == nil {
			return nil, &RecordError{Index: i, Err: ErrNotObject}
		}
		out[i] = rec
	}
	return out, nil
}
