package logger

import (
	"strings"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
)

// Severity classifies a single log entry. The four levels are ordered
// Debug < Info < Warning < Critical and render with their canonical
// capitalized names in log lines.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityDebug:    "Debug",
	SeverityInfo:     "Info",
	SeverityWarning:  "Warning",
	SeverityCritical: "Critical",
}

// Severities lists the tracked severities in order. Counter maps and the
// log summary iterate this slice so reporting order stays stable.
var Severities = []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityCritical}

// String returns the canonical capitalized name, e.g. "Warning".
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Unknown"
}

// StandardizeSeverityString converts free-form severity text to the
// canonical capitalized form: "CRITICAL" becomes "Critical" and "deBug"
// becomes "Debug". The transform is purely textual and does not check
// membership, so "BROKEN" becomes "Broken".
func StandardizeSeverityString(severity string) string {
	severity = strings.TrimSpace(severity)
	if severity == "" {
		return ""
	}
	return strings.ToUpper(severity[:1]) + strings.ToLower(severity[1:])
}

// ParseSeverity resolves a severity name case-insensitively. The second
// return value reports whether the name matched one of the four recognized
// severities.
func ParseSeverity(name string) (Severity, bool) {
	switch StandardizeSeverityString(name) {
	case "Debug":
		return SeverityDebug, true
	case "Info":
		return SeverityInfo, true
	case "Warning":
		return SeverityWarning, true
	case "Critical":
		return SeverityCritical, true
	}
	return SeverityInfo, false
}

// SeverityFromErrorCode classifies an error code offset by its range,
// independent of any configured error code base. Offsets outside [0, 3999]
// classify as Warning so a miscoded caller stays visible in the log without
// failing the job.
func SeverityFromErrorCode(code errorcode.ErrorCode) Severity {
	switch {
	case code >= 0 && code <= 999:
		return SeverityInfo
	case code >= 1000 && code <= 1999:
		return SeverityDebug
	case code >= 2000 && code <= 2999:
		return SeverityWarning
	case code >= 3000 && code <= 3999:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}
