package iobridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftkernel/repl"
)

// stubDebugger implements just enough of repl.Debugger for Supervisor to
// construct and for Interrupt() to have something to forward to.
type stubDebugger struct {
	mu         sync.Mutex
	stdout     [][]byte
	interrupts int
}

func (s *stubDebugger) Launch(ctx context.Context, path, arch string, extraArgs, extraEnv []string) error {
	return nil
}
func (s *stubDebugger) Evaluate(ctx context.Context, source string) (repl.EvalResult, error) {
	return repl.EvalResult{}, nil
}
func (s *stubDebugger) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts++
}
func (s *stubDebugger) ProcessState() repl.ProcessState { return repl.StateRunning }
func (s *stubDebugger) StackFrames() []repl.StackFrame  { return nil }
func (s *stubDebugger) Complete(ctx context.Context, prefix string) ([]string, string, error) {
	return nil, "", nil
}
func (s *stubDebugger) ReadStdout() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stdout) == 0 {
		return nil
	}
	chunk := s.stdout[0]
	s.stdout = s.stdout[1:]
	return chunk
}
func (s *stubDebugger) Terminate() error { return nil }

func (s *stubDebugger) push(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout = append(s.stdout, []byte(chunk))
}

func TestBridge_ExecutionFlag(t *testing.T) {
	dbg := &stubDebugger{}
	sup := repl.NewSupervisor(dbg, "/usr/bin/swift", "arm64")
	b := New(sup, time.Millisecond)

	assert.False(t, b.Executing())
	assert.True(t, b.CompletionGate())

	b.BeginExecution()
	assert.True(t, b.Executing())
	assert.False(t, b.CompletionGate())

	b.EndExecution()
	assert.False(t, b.Executing())
	assert.True(t, b.CompletionGate())
}

func TestBridge_DrainsStdoutOnlyWhileExecuting(t *testing.T) {
	dbg := &stubDebugger{}
	sup := repl.NewSupervisor(dbg, "/usr/bin/swift", "arm64")
	b := New(sup, 5*time.Millisecond)

	var mu sync.Mutex
	var received []string
	b.SetStdoutSink(func(chunk string) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, chunk)
	})

	b.Run(dbg)
	defer b.Stop()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, received)
	mu.Unlock()

	b.BeginExecution()
	dbg.push("hello from swift\n")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "hello from swift\n", received[0])
	mu.Unlock()
}

func TestBridge_Interrupt_ForwardsToSupervisor(t *testing.T) {
	dbg := &stubDebugger{}
	sup := repl.NewSupervisor(dbg, "/usr/bin/swift", "arm64")
	b := New(sup, time.Millisecond)

	b.Interrupt()

	dbg.mu.Lock()
	defer dbg.mu.Unlock()
	assert.Equal(t, 1, dbg.interrupts)
}

func TestBridge_WatchSignals_StopIsIdempotentSafe(t *testing.T) {
	dbg := &stubDebugger{}
	sup := repl.NewSupervisor(dbg, "/usr/bin/swift", "arm64")
	b := New(sup, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.WatchSignals(ctx)
	b.StopSignalWatch()
	b.StopSignalWatch()
}
