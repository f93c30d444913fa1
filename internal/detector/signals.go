package detector

import "strings"

// MatchSignals reports every pattern contained in html, ignoring case.
// Labels are "script: <pattern>" or "html: <pattern>". The result is never nil.
func MatchSignals(html string) []string {
	lower := strings.ToLower(html)
	matched := make([]string, 0)
	for _, s := range signals {
		if strings.Contains(lower, s.needle) {
			matched = append(matched, s.label)
		}
	}
	return matched
}
