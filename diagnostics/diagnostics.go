// Package diagnostics classifies and enriches raw debugger error text into
// structured, hint-annotated diagnostic records.
package diagnostics

import (
	"strings"
	"unicode/utf8"

	"swiftkernel/repl"
)

// Severity is the classification derived by substring match.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "error"
	}
}

// Record is the output of the formatter.
type Record struct {
	Severity Severity
	Message  string
	Frames   []repl.StackFrame
	Hints    []string
}

// knownPrefixes are leading debugger prefixes to strip before display.
var knownPrefixes = []string{
	"error: ",
	"expression produced error: ",
	"Execution was interrupted, reason: ",
	"fatal error: ",
}

// StripPrefixes removes any leading prefix from knownPrefixes, applying at
// most once (they are not expected to nest).
func StripPrefixes(msg string) string {
	for _, p := range knownPrefixes {
		if strings.HasPrefix(msg, p) {
			return msg[len(p):]
		}
	}
	return msg
}

// ClassifySeverity applies the substring match.
func ClassifySeverity(msg string) Severity {
	switch {
	case strings.Contains(msg, "warning:"):
		return SeverityWarning
	case strings.Contains(msg, "note:"):
		return SeverityNote
	default:
		return SeverityError
	}
}

// DecodeBytes decodes debugger-supplied bytes as UTF-8 with replacement,
// substituting U+FFFD for any invalid byte while leaving valid runs
// elsewhere in the same buffer untouched. Go's strings.ToValidUTF8 cannot
// itself fail the way a strict decoder can, so there is no second,
// Latin-1 decoding step.
func DecodeBytes(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// Format builds a Record from an Outcome carrying an error or trace.
// Hints come from the catalog match in hints.go.
func Format(o repl.Outcome) Record {
	msg := StripPrefixes(o.Message)
	rec := Record{
		Severity: ClassifySeverity(msg),
		Message:  msg,
		Frames:   o.Frames,
	}
	rec.Hints = MatchHints(msg)
	return rec
}

// FormatFrames renders stack frames one per line.
func FormatFrames(frames []repl.StackFrame) []string {
	lines := make([]string, 0, len(frames))
	for _, f := range frames {
		if f.Line <= 0 {
			continue
		}
		lines = append(lines, f.Format())
	}
	return lines
}
