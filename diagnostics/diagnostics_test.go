package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"swiftkernel/repl"
)

func TestStripPrefixes(t *testing.T) {
	cases := map[string]string{
		"error: cannot find 'x' in scope":                 "cannot find 'x' in scope",
		"expression produced error: divide by zero":        "divide by zero",
		"Execution was interrupted, reason: signal SIGSTOP": "signal SIGSTOP",
		"fatal error: unexpectedly found nil":               "unexpectedly found nil",
		"no known prefix here":                              "no known prefix here",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripPrefixes(in))
	}
}

func TestClassifySeverity(t *testing.T) {
	assert.Equal(t, SeverityWarning, ClassifySeverity("foo.swift:1:1: warning: unused variable"))
	assert.Equal(t, SeverityNote, ClassifySeverity("foo.swift:1:1: note: did you mean 'x'?"))
	assert.Equal(t, SeverityError, ClassifySeverity("foo.swift:1:1: cannot find 'x'"))
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "note", SeverityNote.String())
}

func TestDecodeBytes_ValidUTF8(t *testing.T) {
	assert.Equal(t, "hello", DecodeBytes([]byte("hello")))
}

func TestDecodeBytes_InvalidUTF8ReplacesOnlyBadBytes(t *testing.T) {
	// 0xE9 alone is not valid UTF-8; "ok " on either side must survive
	// untouched rather than the whole buffer being reinterpreted.
	out := DecodeBytes([]byte("ok \xe9 ok"))
	assert.Equal(t, "ok � ok", out)
}

func TestFormat_StripsPrefixAndClassifies(t *testing.T) {
	o := repl.Outcome{
		Kind:    repl.RuntimeError,
		Message: "fatal error: Index out of range",
		Frames:  []repl.StackFrame{{Function: "main", File: "<Cell 1>", Line: 3, Column: 1}},
	}
	rec := Format(o)
	assert.Equal(t, "Index out of range", rec.Message)
	assert.Equal(t, SeverityError, rec.Severity)
	assert.Len(t, rec.Frames, 1)
}

func TestFormatFrames_SkipsZeroLine(t *testing.T) {
	frames := []repl.StackFrame{
		{Function: "main", File: "<Cell 1>", Line: 0, Column: 0},
		{Function: "helper", File: "<Cell 1>", Line: 5, Column: 2},
	}
	lines := FormatFrames(frames)
	assert.Equal(t, []string{"  at helper (<Cell 1>:5:2)"}, lines)
}
