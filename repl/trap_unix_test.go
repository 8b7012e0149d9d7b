//go:build unix

package repl

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrapSignaled_FatalSignalIsTrapped(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -ABRT $$")
	err := cmd.Run()
	assert.True(t, trapSignaled(err))
}

func TestTrapSignaled_CleanExitIsNotTrapped(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	err := cmd.Run()
	assert.False(t, trapSignaled(err))
}

func TestTrapSignaled_NonZeroExitIsNotTrapped(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 1")
	err := cmd.Run()
	assert.False(t, trapSignaled(err))
}
