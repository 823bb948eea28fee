package service

import (
	"regexp"
	"strings"
)

var (
	// bracketToken pulls "1.2.3.4" out of decorated lines such as "<1.2.3.4, web-01>"
	bracketToken = regexp.MustCompile(`<\s*([^,\s>]+)`)

	// Digit groups only, octet ranges are not checked
	ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

	// Full eight-group form only, "::" compression is rejected
	ipv6Pattern = regexp.MustCompile(`^([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}$`)
)

// IsValidIP reports whether s passes the accepted IPv4 or IPv6 textual form
func IsValidIP(s string) bool {
	return ipv4Pattern.MatchString(s) || ipv6Pattern.MatchString(s)
}

// ParseInput turns pasted free text into the ordered list of IPs to resolve.
// Lines are trimmed, bracket-decorated lines are reduced to their first token,
// invalid lines are dropped silently and duplicates keep their first position.
func ParseInput(text string) []string {
	lines := strings.Split(text, "\n")
	seen := make(map[string]struct{}, len(lines))
	ips := make([]string, 0, len(lines))

	for _, line := range lines {
		candidate := extractIP(strings.TrimSpace(line))
		if candidate == "" || !IsValidIP(candidate) {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		ips = append(ips, candidate)
	}

	return ips
}

func extractIP(line string) string {
	if !strings.Contains(line, "<") || !strings.Contains(line, ">") {
		return line
	}

	m := bracketToken.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}
