package analysis

import (
	"strings"
)

// SuppressMarker on a line suppresses findings starting on that line. It
// may be followed by a comma-separated list of rule IDs; without one it
// suppresses every rule.
const SuppressMarker = "reform:ignore"

// Suppressed reports whether a finding of ruleID starting at offset is
// suppressed by a marker on its line.
func Suppressed(text string, offset int, ruleID string) bool {
	offset = max(0, min(offset, len(text)))
	start := strings.LastIndexAny(text[:offset], "\r\n") + 1
	end := strings.IndexAny(text[offset:], "\r\n")
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}
	line := text[start:end]

	i := strings.Index(line, SuppressMarker)
	if i < 0 {
		return false
	}
	rest := strings.TrimSpace(line[i+len(SuppressMarker):])
	fields := strings.Fields(rest)
	if len(fields) == 0 || !isIDList(fields[0]) {
		return true
	}
	for _, id := range strings.Split(fields[0], ",") {
		if strings.EqualFold(id, ruleID) {
			return true
		}
	}
	return false
}

// isIDList reports whether s is a comma-separated list of rule IDs, each
// letters followed by digits such as RF1001.
func isIDList(s string) bool {
	for _, id := range strings.Split(s, ",") {
		if !isRuleID(id) {
			return false
		}
	}
	return true
}

func isRuleID(id string) bool {
	letters := 0
	for letters < len(id) && isLetter(id[letters]) {
		letters++
	}
	digits := id[letters:]
	if letters == 0 || digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}
