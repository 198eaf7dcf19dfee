package analysis

import (
	"fmt"
	"strings"
)

// Severity orders findings; a run fixes findings at or above a threshold.
type Severity int

const (
	SeverityHidden Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "hidden"
	}
}

// ParseSeverity accepts the command-line and .editorconfig spellings.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "silent", "hidden":
		return SeverityHidden, nil
	case "info", "suggestion":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}
