package repl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDebugger is a scriptable Debugger for exercising Supervisor without a
// real Swift REPL process.
type fakeDebugger struct {
	launchErr    error
	evalResults  []EvalResult
	evalErrs     []error
	evalCalls    int
	state        ProcessState
	frames       []StackFrame
	interrupts   int
	terminated   bool
	launchArgs   []string
	launchEnv    []string
}

func (f *fakeDebugger) Launch(ctx context.Context, path, arch string, extraArgs, extraEnv []string) error {
	f.launchArgs = extraArgs
	f.launchEnv = extraEnv
	return f.launchErr
}

func (f *fakeDebugger) Evaluate(ctx context.Context, source string) (EvalResult, error) {
	i := f.evalCalls
	f.evalCalls++
	var res EvalResult
	if i < len(f.evalResults) {
		res = f.evalResults[i]
	}
	var err error
	if i < len(f.evalErrs) {
		err = f.evalErrs[i]
	}
	return res, err
}

func (f *fakeDebugger) Interrupt()                { f.interrupts++ }
func (f *fakeDebugger) ProcessState() ProcessState { return f.state }
func (f *fakeDebugger) StackFrames() []StackFrame  { return f.frames }
func (f *fakeDebugger) Complete(ctx context.Context, prefix string) ([]string, string, error) {
	return []string{prefix + "Bar", prefix + "Baz"}, prefix, nil
}
func (f *fakeDebugger) ReadStdout() []byte { return nil }
func (f *fakeDebugger) Terminate() error   { f.terminated = true; return nil }

func TestSupervisor_StartFailureDegradesWithoutError(t *testing.T) {
	fd := &fakeDebugger{launchErr: errors.New("boom")}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, s.Degraded())
}

func TestSupervisor_ExecuteWhileDegradedReturnsFatalRuntimeError(t *testing.T) {
	fd := &fakeDebugger{launchErr: errors.New("boom")}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	_ = s.Start(context.Background())

	o := s.Execute(context.Background(), "", "print(1)")
	assert.Equal(t, RuntimeError, o.Kind)
	assert.True(t, o.Fatal)
}

func TestSupervisor_ExecuteSuccessValue(t *testing.T) {
	fd := &fakeDebugger{
		state:       StateRunning,
		evalResults: []EvalResult{{HasValue: true, TypeName: "Int", ValueDescription: "42"}},
	}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Start(context.Background()))

	o := s.Execute(context.Background(), "", "40 + 2")
	assert.Equal(t, SuccessValue, o.Kind)
	assert.Equal(t, "Int", o.Value.TypeName)
}

func TestSupervisor_ExecuteCompileError(t *testing.T) {
	fd := &fakeDebugger{
		state:       StateRunning,
		evalResults: []EvalResult{{ErrorReported: true, ErrorDescription: "error: cannot find 'x' in scope"}},
	}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Start(context.Background()))

	o := s.Execute(context.Background(), "", "x")
	assert.Equal(t, CompileError, o.Kind)
	assert.Equal(t, "cannot find 'x' in scope", o.Message)
}

func TestSupervisor_ExecuteInterrupted(t *testing.T) {
	fd := &fakeDebugger{evalErrs: []error{errInterrupted}}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Start(context.Background()))

	o := s.Execute(context.Background(), "", "sleep(10)")
	assert.Equal(t, Interrupted, o.Kind)
	assert.False(t, s.Degraded())
}

func TestSupervisor_ExecuteProcessExitedDegrades(t *testing.T) {
	fd := &fakeDebugger{state: StateExited}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Start(context.Background()))

	o := s.Execute(context.Background(), "", "print(1)")
	assert.Equal(t, RuntimeError, o.Kind)
	assert.True(t, o.Fatal)
	assert.True(t, s.Degraded())
}

func TestSupervisor_SetLaunchOptionsAppliedOnStart(t *testing.T) {
	fd := &fakeDebugger{}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	s.SetLaunchOptions([]string{"-I/tmp/mods"}, []string{"FOO=bar"})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"-I/tmp/mods"}, fd.launchArgs)
	assert.Equal(t, []string{"FOO=bar"}, fd.launchEnv)
}

func TestSupervisor_InterruptCount(t *testing.T) {
	fd := &fakeDebugger{}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	s.Interrupt()
	s.Interrupt()
	assert.Equal(t, 2, s.InterruptCount())
	assert.Equal(t, 2, fd.interrupts)
}

func TestSupervisor_Complete_ComputesCursorRange(t *testing.T) {
	fd := &fakeDebugger{}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")

	matches, start, end, err := s.Complete(context.Background(), "Foo.ba", 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo.baBar", "Foo.baBaz"}, matches)
	assert.Equal(t, 0, start)
	assert.Equal(t, 6, end)
}

func TestSupervisor_ProcessState_NoProcessBeforeStart(t *testing.T) {
	fd := &fakeDebugger{state: StateRunning}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	assert.Equal(t, StateNoProcess, s.ProcessState())
}

func TestSupervisor_ProcessState_DelegatesAfterStart(t *testing.T) {
	fd := &fakeDebugger{state: StateRunning}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.ProcessState())
}

func TestSupervisor_Shutdown_Terminates(t *testing.T) {
	fd := &fakeDebugger{}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Shutdown())
	assert.True(t, fd.terminated)
}

func TestFormatTimeIt(t *testing.T) {
	line := FormatTimeIt(500*time.Nanosecond, time.Millisecond, 2*time.Second, 3)
	assert.Contains(t, line, "3 loops")
	assert.Contains(t, line, "500ns")
}

func TestSupervisor_TimeIt_StopsOnFailure(t *testing.T) {
	fd := &fakeDebugger{
		state: StateRunning,
		evalResults: []EvalResult{
			{HasValue: false},
			{ErrorReported: true, ErrorDescription: "error: boom"},
		},
	}
	s := NewSupervisor(fd, "/usr/bin/swift", "arm64")
	require.NoError(t, s.Start(context.Background()))

	_, _, _, iterations, outcome := s.TimeIt(context.Background(), "", "doWork()", time.Hour, 10)
	assert.Equal(t, 2, iterations)
	assert.Equal(t, CompileError, outcome.Kind)
}
