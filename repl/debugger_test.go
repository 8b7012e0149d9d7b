package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSourceLocation_ExtractsFileAndLine(t *testing.T) {
	file, line := parseSourceLocation("#sourceLocation(file: \"<Cell 3>\", line: 1)\nlet x = arr[10]\n")
	assert.Equal(t, "<Cell 3>", file)
	assert.Equal(t, 1, line)
}

func TestParseSourceLocation_NoDirectiveReturnsEmpty(t *testing.T) {
	file, line := parseSourceLocation("let x = 1")
	assert.Equal(t, "", file)
	assert.Equal(t, 0, line)
}

func TestExtractFrames_ParsesBacktraceListing(t *testing.T) {
	tail := "Fatal error: Index out of range\nCurrent stack trace:\n0    0x0000000100abcd12 doWork + 34 at <Cell 3>:2:5\n1    0x0000000100abce00 main + 12 at <Cell 3>:1:1\n"
	frames := extractFrames(tail, "<Cell 3>", 1)
	if assert.Len(t, frames, 2) {
		assert.Equal(t, StackFrame{Function: "doWork", File: "<Cell 3>", Line: 2, Column: 5}, frames[0])
		assert.Equal(t, StackFrame{Function: "main", File: "<Cell 3>", Line: 1, Column: 1}, frames[1])
	}
}

func TestExtractFrames_FallsBackToSourceLocationWithoutListing(t *testing.T) {
	frames := extractFrames("Fatal error: Index out of range\n", "<Cell 3>", 1)
	if assert.Len(t, frames, 1) {
		assert.Equal(t, "<Cell 3>", frames[0].File)
		assert.Equal(t, 1, frames[0].Line)
	}
}

func TestExtractFrames_NothingToGoOnReturnsNil(t *testing.T) {
	assert.Nil(t, extractFrames("no useful text", "", 0))
}
