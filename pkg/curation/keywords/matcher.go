// Package keywords matches configured keywords as whole words.
package keywords

import (
	"regexp"
	"strings"
)

// Matcher finds whole-word keyword occurrences, ignoring case
type Matcher struct {
	re *regexp.Regexp
}

// New compiles a matcher. An empty keyword list matches nothing.
func New(list []string) *Matcher {
	quoted := make([]string, 0, len(list))
	for _, k := range list {
		if k = strings.TrimSpace(k); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(k)))
		}
	}
	if len(quoted) == 0 {
		return &Matcher{}
	}
	return &Matcher{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// Matches returns the distinct keywords found in text, in order of first
// occurrence. A nil matcher matches nothing.
func (m *Matcher) Matches(text string) []string {
	if m == nil || m.re == nil {
		return nil
	}
	found := m.re.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]bool, len(found))
	out := found[:0]
	for _, f := range found {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Any reports whether text contains at least one keyword
func (m *Matcher) Any(text string) bool {
	return m != nil && m.re != nil && m.re.MatchString(strings.ToLower(text))
}
