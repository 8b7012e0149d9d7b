package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteOptionsFromContent_Defaults(t *testing.T) {
	opts := executeOptionsFromContent(map[string]any{"code": "1+1"})
	assert.False(t, opts.Silent)
	assert.True(t, opts.StoreHistory)
	assert.True(t, opts.AllowStdin)
}

func TestExecuteOptionsFromContent_SilentForcesStoreHistoryOff(t *testing.T) {
	opts := executeOptionsFromContent(map[string]any{"silent": true, "store_history": true})
	assert.True(t, opts.Silent)
	assert.False(t, opts.StoreHistory)
}

func TestExecuteOptionsFromContent_ExplicitStoreHistoryFalse(t *testing.T) {
	opts := executeOptionsFromContent(map[string]any{"store_history": false})
	assert.False(t, opts.Silent)
	assert.False(t, opts.StoreHistory)
}

func TestExecuteOptionsFromContent_AllowStdinFalse(t *testing.T) {
	opts := executeOptionsFromContent(map[string]any{"allow_stdin": false})
	assert.False(t, opts.AllowStdin)
}
