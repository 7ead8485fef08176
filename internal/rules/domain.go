package rules

import "strings"

// countLabels returns the number of dot-separated labels in a host
func countLabels(host string) int {
	if host == "" {
		return 0
	}
	return len(strings.Split(host, "."))
}

// topLevelLabel returns the last dot-separated label of a host
func topLevelLabel(host string) string {
	if host == "" {
		return ""
	}
	parts := strings.Split(host, ".")
	return parts[len(parts)-1]
}

// hasSuffixIn reports whether host equals or ends with any of the given
// domain suffixes
func hasSuffixIn(host string, suffixes []string) bool {
	for _, suffix := range suffixes {
		s := strings.ToLower(strings.TrimPrefix(suffix, "."))
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any of the tokens
func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if token != "" && strings.Contains(s, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// inSet reports whether value is one of the set entries, case-insensitively
func inSet(value string, set []string) bool {
	for _, entry := range set {
		if strings.EqualFold(value, entry) {
			return true
		}
	}
	return false
}
