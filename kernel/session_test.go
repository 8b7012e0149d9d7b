package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_NextCellIncrementsCounter(t *testing.T) {
	s := NewSession("sess-1")
	c1 := s.NextCell("let x = 1", true)
	c2 := s.NextCell("x + 1", true)

	assert.Equal(t, 1, c1.ExecutionCount)
	assert.Equal(t, 2, c2.ExecutionCount)
	assert.Equal(t, 2, s.ExecutionCount())
	assert.Len(t, s.Cells, 2)
}

func TestSession_NextCellWithoutStoreHistorySkipsCounterAndCells(t *testing.T) {
	s := NewSession("sess-1")
	s.NextCell("let x = 1", true)
	silent := s.NextCell("x + 1", false)

	assert.Equal(t, 1, silent.ExecutionCount)
	assert.Equal(t, 1, s.ExecutionCount())
	assert.Len(t, s.Cells, 1)
	assert.False(t, silent.StoreHistory)
}

func TestSession_RecordPackage(t *testing.T) {
	s := NewSession("sess-1")
	s.RecordPackage("Logging")
	assert.Equal(t, []string{"Logging"}, s.InstalledPackages)
}

func TestSession_ResetClearsHistoryNotPackages(t *testing.T) {
	s := NewSession("sess-1")
	s.NextCell("let x = 1", true)
	s.RecordPackage("Logging")

	s.Reset()

	assert.Equal(t, 0, s.ExecutionCount())
	assert.Empty(t, s.Cells)
	assert.Equal(t, []string{"Logging"}, s.InstalledPackages)
}

func TestNewSession_CompletionEnabledByDefault(t *testing.T) {
	s := NewSession("sess-1")
	assert.True(t, s.CompletionEnabled)
}
