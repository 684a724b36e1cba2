package accesslog

import "strings"

// SubstringRule maps a case-sensitive substring of the client signature to a label.
type SubstringRule struct {
	Substring string
	Label     string
}

// RuleTable is an ordered list of substring rules. The first rule whose substring
// occurs in the input wins, so table order is the tie-break.
type RuleTable []SubstringRule

// DefaultBrowserRules is checked in order; "Chrome" precedes "Safari" because
// Chrome signatures also contain "Safari".
var DefaultBrowserRules = RuleTable{
	{"Chrome", "Chrome"},
	{"Firefox", "Firefox"},
	{"Safari", "Safari"},
	{"Edge", "Edge"},
	{"Opera", "Opera"},
}

var DefaultOSRules = RuleTable{
	{"Windows", "Windows"},
	{"Mac", "Mac"},
	{"Linux", "Linux"},
	{"Android", "Android"},
	{"iOS", "iOS"},
}

// DefaultMobileIndicators mark a signature as a mobile device.
var DefaultMobileIndicators = []string{"Mobile", "Android", "iPhone", "iPad"}

// DefaultStaticExtensions are matched case-insensitively anywhere in the path.
var DefaultStaticExtensions = []string{".css", ".js", ".jpg", ".jpeg", ".png", ".gif", ".ico", ".svg", ".woff", ".ttf"}

// Classify returns the label of the first matching rule, or Other.
func (t RuleTable) Classify(s string) string {
	for _, r := range t {
		if r.Substring != "" && strings.Contains(s, r.Substring) {
			return r.Label
		}
	}
	return Other
}

// Labels returns the distinct labels in table order followed by Other.
func (t RuleTable) Labels() []string {
	return appendOther(distinct(len(t), func(i int) string { return t[i].Label }))
}

func deviceClass(signature string, indicators []string) string {
	for _, ind := range indicators {
		if ind != "" && strings.Contains(signature, ind) {
			return Mobile
		}
	}
	return Desktop
}

func isStaticResource(path string, extensions []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if ext != "" && strings.Contains(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func distinct(n int, at func(int) string) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		l := at(i)
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func appendOther(labels []string) []string {
	for _, l := range labels {
		if l == Other {
			return labels
		}
	}
	return append(labels, Other)
}
