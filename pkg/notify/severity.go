package notify

import "strings"

// Severity tags a notification with its visual treatment.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps free-form input onto a known severity, defaulting to info.
func ParseSeverity(value string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(value))) {
	case SeveritySuccess:
		return SeveritySuccess
	case SeverityWarning:
		return SeverityWarning
	case SeverityError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// Normalize returns severity when known, otherwise SeverityInfo.
func (severity Severity) Normalize() Severity {
	return ParseSeverity(string(severity))
}

// IconName returns the icon identifier associated with the severity.
func (severity Severity) IconName() string {
	switch severity.Normalize() {
	case SeveritySuccess:
		return "check-circle"
	case SeverityError:
		return "exclamation-circle"
	case SeverityWarning:
		return "exclamation-triangle"
	default:
		return "info-circle"
	}
}

// Glyph returns a single-character terminal rendering of the icon.
func (severity Severity) Glyph() string {
	switch severity.Normalize() {
	case SeveritySuccess:
		return "✔"
	case SeverityError:
		return "✖"
	case SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}
