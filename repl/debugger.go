package repl

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"swiftkernel/logging"
)

// Debugger is the contract for driving a native debugger's scripting API:
// create a handle, create a target from an executable path plus host
// architecture, launch it, evaluate expressions, interrupt, query process
// state, complete, and enumerate stack frames. No Go binding to a real
// SBDebugger-style API is wired in here, so PTYDebugger below drives the
// REPL executable directly through a pseudo-terminal instead — an actual
// deployment would satisfy this interface with a cgo or RPC binding to
// that API instead.
type Debugger interface {
	// Launch starts the REPL executable at path for the given host
	// architecture ("arm64" or "x86_64"), with extraArgs appended to the
	// invocation (library/module/framework search paths, linker flags) and
	// extraEnv appended to the inherited environment (%swift_env).
	Launch(ctx context.Context, path, arch string, extraArgs, extraEnv []string) error

	// Evaluate submits source to the REPL and blocks until either a
	// value/void result or an error is available.
	Evaluate(ctx context.Context, source string) (EvalResult, error)

	// Interrupt issues an asynchronous interrupt to the running process.
	// Safe to call when no process exists.
	Interrupt()

	// ProcessState reports the process's current run state.
	ProcessState() ProcessState

	// StackFrames enumerates the frames of the stopped thread, most
	// recent first.
	StackFrames() []StackFrame

	// Complete returns candidate completions for prefix plus the common
	// prefix used to compute the client-visible cursor range.
	Complete(ctx context.Context, prefix string) (candidates []string, commonPrefix string, err error)

	// ReadStdout drains any buffered stdout produced since the last call,
	// non-blocking. Safe to call concurrently with Evaluate.
	ReadStdout() []byte

	// Terminate ends the debugger session and the underlying process.
	Terminate() error
}

// ProcessState is the run state a Supervisor classifies executions against.
type ProcessState int

const (
	StateNoProcess ProcessState = iota
	StateRunning
	StateStoppedNonExit
	StateExited
)

// EvalResult is the raw shape a real debugger's "evaluate expression"
// operation returns: a value description plus an error description and a
// reported-error flag, before Supervisor classification.
type EvalResult struct {
	HasValue         bool
	TypeName         string
	ValueDescription string
	Children         []ValueChild
	ErrorReported    bool
	ErrorDescription string
}

// ValueChild is one entry produced by the debugger's value-child
// enumeration; sequences, mappings and records render from these.
type ValueChild struct {
	Key   string
	Type  string
	Value string
}

const (
	compileErrorPrefix = "error: "
	promptMarker       = "(swiftkernel_repl) "
)

// PTYDebugger drives a Swift REPL executable through a pseudo-terminal,
// delimiting each submission's output with a random sentinel so the end of
// evaluation is unambiguous even when the REPL echoes multi-line prompts.
type PTYDebugger struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	ptmx     *os.File
	reader   *bufio.Reader
	stdout   strings.Builder
	stdoutMu sync.Mutex

	interrupted bool
	state       ProcessState
	frames      []StackFrame

	// launch* hold the arguments from the last Launch call, so a trap-driven
	// resume can respawn the process the same way without the caller
	// re-supplying them.
	launchPath string
	launchArch string
	launchArgs []string
	launchEnv  []string

	// lastFile/lastLine come from the #sourceLocation directive prefixed to
	// the most recent submission, used to synthesize a frame when the
	// crashed process printed no parseable stack trace of its own.
	lastFile string
	lastLine int
}

// NewPTYDebugger constructs an idle debugger handle; Launch starts the
// process.
func NewPTYDebugger() *PTYDebugger {
	return &PTYDebugger{state: StateNoProcess}
}

func (d *PTYDebugger) Launch(ctx context.Context, path, arch string, extraArgs, extraEnv []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(ctx, path, arch, extraArgs, extraEnv)
}

// startLocked spawns the REPL process and its drain goroutine, recording
// the launch parameters so a trap-driven resume can reuse them. Must be
// called with d.mu held.
func (d *PTYDebugger) startLocked(ctx context.Context, path, arch string, extraArgs, extraEnv []string) error {
	logging.FromContext(ctx).Info("launching swift repl", "path", path, "arch", arch, "goos", runtime.GOOS, "args", extraArgs)

	args := append([]string{"-repl"}, extraArgs...)
	cmd := exec.CommandContext(ctx, path, args...)
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	ptmx, err := pty.Start(cmd)
	if err != nil {
		d.state = StateNoProcess
		return fmt.Errorf("start swift repl: %w", err)
	}

	d.launchPath, d.launchArch, d.launchArgs, d.launchEnv = path, arch, extraArgs, extraEnv
	d.cmd = cmd
	d.ptmx = ptmx
	d.reader = bufio.NewReaderSize(ptmx, 64*1024)
	d.state = StateRunning
	d.frames = nil

	go d.drain()

	return nil
}

// resumeLocked relaunches the REPL with the last Launch's arguments. Must
// be called with d.mu held. The pty-driven stand-in has no real debugger
// attached to intercept the signal a Swift runtime trap raises, so the
// trap kills the child outright rather than leaving it merely stopped;
// relaunching transparently here is what a real Debugger binding would get
// for free by resuming the suspended process, and is what keeps the REPL
// usable for the next cell after a trap.
func (d *PTYDebugger) resumeLocked(ctx context.Context) error {
	return d.startLocked(ctx, d.launchPath, d.launchArch, d.launchArgs, d.launchEnv)
}

// drain continuously copies ptmx bytes into the internal stdout buffer;
// this is the "non-blocking stdout read" contract's producer side, running
// on its own goroutine so ReadStdout never blocks on process I/O. Once the
// stream ends, it classifies why.
func (d *PTYDebugger) drain() {
	buf := make([]byte, 4096)
	for {
		n, err := d.ptmx.Read(buf)
		if n > 0 {
			d.stdoutMu.Lock()
			d.stdout.Write(buf[:n])
			d.stdoutMu.Unlock()
		}
		if err != nil {
			d.handleExit()
			return
		}
	}
}

// handleExit runs once the pty stream closes. A fatal Swift runtime trap
// (array bounds, force-unwrap, integer overflow) aborts the child with a
// signal after the runtime prints "Fatal error: ..." to stderr; that
// combination is reported as stopped rather than exited, with whatever
// frames could be recovered, mirroring what a real debugger attached to the
// process would report for the same trap instead of letting it die.
func (d *PTYDebugger) handleExit() {
	d.mu.Lock()
	cmd := d.cmd
	d.mu.Unlock()

	waitErr := cmd.Wait()

	d.stdoutMu.Lock()
	tail := d.stdout.String()
	d.stdoutMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateRunning {
		return
	}
	if trapSignaled(waitErr) {
		d.state = StateStoppedNonExit
		d.frames = extractFrames(tail, d.lastFile, d.lastLine)
		return
	}
	d.state = StateExited
}

// sourceLocationPattern matches the #sourceLocation directive Preprocess
// prefixes to every submission, recovering the cell file/line a crash
// belongs to when the crashed process printed no trace of its own.
var sourceLocationPattern = regexp.MustCompile(`#sourceLocation\(file: "([^"]*)", line: (\d+)\)`)

func parseSourceLocation(source string) (file string, line int) {
	m := sourceLocationPattern.FindStringSubmatch(source)
	if m == nil {
		return "", 0
	}
	line, _ = strconv.Atoi(m[2])
	return m[1], line
}

// stackTraceLine matches one frame of the "Current stack trace:" listing a
// Swift runtime backtrace prints, e.g. "0  0x... someFunc + 12 at
// <cell 3>:2:5".
var stackTraceLine = regexp.MustCompile(`(?m)^\s*\d+\s+0x[0-9a-fA-F]+\s+(\S+)(?:\s+\+\s+\d+)?\s+at\s+(.+):(\d+):(\d+)\s*$`)

// extractFrames recovers a stack trace from a crashed submission's output.
// It prefers an explicit "Current stack trace:" listing; failing that, it
// falls back to a single frame at the submission's own #sourceLocation, so
// the diagnostic formatter always has somewhere to point.
func extractFrames(tail, fallbackFile string, fallbackLine int) []StackFrame {
	matches := stackTraceLine.FindAllStringSubmatch(tail, -1)
	if len(matches) > 0 {
		frames := make([]StackFrame, 0, len(matches))
		for _, m := range matches {
			line, _ := strconv.Atoi(m[3])
			col, _ := strconv.Atoi(m[4])
			frames = append(frames, StackFrame{Function: m[1], File: m[2], Line: line, Column: col})
		}
		return frames
	}
	if fallbackFile == "" {
		return nil
	}
	return []StackFrame{{Function: "<cell>", File: fallbackFile, Line: fallbackLine, Column: 1}}
}

func (d *PTYDebugger) ReadStdout() []byte {
	d.stdoutMu.Lock()
	defer d.stdoutMu.Unlock()
	if d.stdout.Len() == 0 {
		return nil
	}
	out := []byte(d.stdout.String())
	d.stdout.Reset()
	return out
}

func (d *PTYDebugger) ProcessState() ProcessState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// sentinel returns a fresh random marker unlikely to collide with any
// program output, used to detect where one evaluation's output ends.
func sentinel() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "SWIFTKERNEL_" + hex.EncodeToString(buf), nil
}

func (d *PTYDebugger) Evaluate(ctx context.Context, source string) (EvalResult, error) {
	d.mu.Lock()
	if d.state == StateStoppedNonExit {
		if err := d.resumeLocked(ctx); err != nil {
			d.mu.Unlock()
			return EvalResult{}, fmt.Errorf("resume after trap: %w", err)
		}
	}
	if d.state != StateRunning {
		d.mu.Unlock()
		return EvalResult{}, fmt.Errorf("no running process")
	}
	ptmx := d.ptmx
	d.lastFile, d.lastLine = parseSourceLocation(source)
	d.mu.Unlock()

	mark, err := sentinel()
	if err != nil {
		return EvalResult{}, err
	}

	// Echo the sentinel back through a print statement appended after the
	// user's source, so we can find the boundary of this submission's
	// output deterministically instead of matching on the REPL's own
	// prompt text (which the user's own prints can contain).
	payload := source + "\nprint(\"" + mark + "\")\n"
	if _, err := ptmx.WriteString(payload); err != nil {
		return EvalResult{}, fmt.Errorf("write to repl: %w", err)
	}

	return d.waitForSentinel(ctx, mark)
}

// waitForSentinel only holds d.mu for brief field reads, never across the
// blocking select loop: the drain goroutine needs the same lock to record a
// trap or exit while a submission is in flight, and holding it for the
// whole wait would starve that update out.
func (d *PTYDebugger) waitForSentinel(ctx context.Context, mark string) (EvalResult, error) {
	var collected strings.Builder
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return EvalResult{}, ctx.Err()
		case <-ticker.C:
			d.stdoutMu.Lock()
			chunk := d.stdout.String()
			d.stdout.Reset()
			d.stdoutMu.Unlock()
			collected.WriteString(chunk)

			d.mu.Lock()
			interrupted := d.interrupted
			d.interrupted = false
			state := d.state
			d.mu.Unlock()

			if interrupted {
				return EvalResult{}, errInterrupted
			}

			text := collected.String()
			if idx := strings.Index(text, mark); idx >= 0 {
				return classifyRaw(text[:idx]), nil
			}
			if state == StateStoppedNonExit {
				// The trap is reported through ProcessState, not an error,
				// so Supervisor.Execute takes its stopped-non-exit branch
				// instead of the fatal one.
				return EvalResult{}, nil
			}
			if state != StateRunning {
				return EvalResult{}, fmt.Errorf("process exited during evaluation")
			}
		}
	}
}

var errInterrupted = fmt.Errorf("interrupted")

// classifyRaw builds an EvalResult from the raw REPL transcript preceding
// the sentinel. A real debugger binding would receive this pre-parsed as
// value/type/error fields; here it is recovered textually.
func classifyRaw(text string) EvalResult {
	if idx := strings.Index(text, compileErrorPrefix); idx >= 0 {
		return EvalResult{ErrorReported: true, ErrorDescription: text[idx:]}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return EvalResult{HasValue: false}
	}
	if strings.HasPrefix(trimmed, "$R") || strings.Contains(trimmed, ": ") {
		return EvalResult{HasValue: true, ValueDescription: trimmed, TypeName: inferType(trimmed)}
	}
	return EvalResult{HasValue: false}
}

func inferType(desc string) string {
	if i := strings.LastIndex(desc, ": "); i >= 0 {
		return strings.TrimSpace(desc[i+2:])
	}
	return "Any"
}

func (d *PTYDebugger) Interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateRunning || d.ptmx == nil {
		return
	}
	d.interrupted = true
	// SIGINT to the foreground process group of the pty, mirroring what a
	// terminal-attached Ctrl-C would deliver.
	_, _ = d.ptmx.Write([]byte{0x03})
}

// StackFrames returns whatever frames handleExit recovered from the most
// recent trap. A real debugger binding would enumerate SBThread/SBFrame
// instead of scraping crash output; empty here still means "no trace
// available" rather than "unimplemented", and the diagnostic formatter
// tolerates a frameless runtime error either way.
func (d *PTYDebugger) StackFrames() []StackFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *PTYDebugger) Complete(ctx context.Context, prefix string) ([]string, string, error) {
	// The pty-driven stand-in cannot query a real completion API; returning
	// no matches here is an acknowledged limitation of debugger-dependent
	// completion, not a bug.
	return nil, "", nil
}

func (d *PTYDebugger) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ptmx != nil {
		_ = d.ptmx.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	d.state = StateNoProcess
	return nil
}

var _ Debugger = (*PTYDebugger)(nil)
