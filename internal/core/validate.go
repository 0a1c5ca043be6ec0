package core

import "regexp"

// hostnameRegex accepts registered domain names: dot-separated labels of
// up to 63 chars, alphanumeric with inner hyphens, alphabetic TLD.
var hostnameRegex = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// ValidDomain reports whether s looks like a probe-able hostname.
// Malformed input must be rejected before any network I/O.
func ValidDomain(s string) bool {
	if len(s) == 0 || len(s) > 253 {
		return false
	}
	return hostnameRegex.MatchString(s)
}
