package accesslog

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// CountryClassifier assigns an address to a coarse geographic bucket. It must
// return Other rather than fail when nothing matches.
type CountryClassifier interface {
	Classify(address string) string
}

// Labeler is implemented by classifiers that know their bucket vocabulary up front.
type Labeler interface {
	Labels() []string
}

// PrefixRule maps a literal textual address prefix to a bucket.
type PrefixRule struct {
	Prefix string
	Bucket string
}

// PrefixClassifier matches addresses against ordered literal prefixes; it is not
// CIDR-aware. "200.81" sits before "200.1" so the longer Argentine prefix wins.
type PrefixClassifier struct {
	rules []PrefixRule
}

var DefaultCountryRules = []PrefixRule{
	{"200.81", "Argentina"},
	{"190.", "Chile"},
	{"181.", "Chile"},
	{"200.1", "Brasil"},
	{"186.", "Colombia"},
	{"200.32", "Uruguay"},
}

func NewPrefixClassifier(rules []PrefixRule) *PrefixClassifier {
	cp := make([]PrefixRule, len(rules))
	copy(cp, rules)
	return &PrefixClassifier{rules: cp}
}

func (c *PrefixClassifier) Classify(address string) string {
	for _, r := range c.rules {
		if r.Prefix != "" && strings.HasPrefix(address, r.Prefix) {
			return r.Bucket
		}
	}
	return Other
}

func (c *PrefixClassifier) Labels() []string {
	return appendOther(distinct(len(c.rules), func(i int) string { return c.rules[i].Bucket }))
}

// GeoIPClassifier resolves addresses through a MaxMind country or city database.
// When buckets is non-empty, ISO codes are mapped through it and unmapped countries
// fall into Other; otherwise the English country name is used.
type GeoIPClassifier struct {
	db      *geoip2.Reader
	buckets map[string]string
	owned   bool
}

func NewGeoIPClassifier(db *geoip2.Reader, buckets map[string]string) (*GeoIPClassifier, error) {
	if db == nil {
		return nil, fmt.Errorf("geoip reader is nil")
	}
	return &GeoIPClassifier{db: db, buckets: buckets}, nil
}

// OpenGeoIPClassifier opens the mmdb file at path; Close releases it.
func OpenGeoIPClassifier(path string, buckets map[string]string) (*GeoIPClassifier, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &GeoIPClassifier{db: db, buckets: buckets, owned: true}, nil
}

func (g *GeoIPClassifier) Classify(address string) string {
	ip := net.ParseIP(strings.TrimSpace(address))
	if ip == nil {
		return Other
	}
	rec, err := g.db.Country(ip)
	if err != nil {
		return Other
	}
	iso := rec.Country.IsoCode
	if len(g.buckets) > 0 {
		if b, ok := g.buckets[iso]; ok {
			return b
		}
		return Other
	}
	if name := rec.Country.Names["en"]; name != "" {
		return name
	}
	if iso != "" {
		return iso
	}
	return Other
}

// Labels is only known when a bucket map was supplied.
func (g *GeoIPClassifier) Labels() []string {
	if len(g.buckets) == 0 {
		return nil
	}
	vals := make([]string, 0, len(g.buckets))
	for _, b := range g.buckets {
		vals = append(vals, b)
	}
	sort.Strings(vals)
	return appendOther(distinct(len(vals), func(i int) string { return vals[i] }))
}

func (g *GeoIPClassifier) Close() error {
	if !g.owned {
		return nil
	}
	return g.db.Close()
}
