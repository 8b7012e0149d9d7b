package repl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"swiftkernel/logging"
)

const (
	maxSequenceRows = 100
	maxMappingRows  = 100
	maxRecordRows   = 50
)

// Supervisor owns the single long-lived Swift process.
type Supervisor struct {
	debugger Debugger
	replPath string
	arch     string

	mu       sync.Mutex
	degraded bool
	launched bool
	args     []string
	env      []string

	interruptCount int
}

// NewSupervisor builds a Supervisor around debugger, which is not yet
// launched.
func NewSupervisor(debugger Debugger, replPath, arch string) *Supervisor {
	return &Supervisor{debugger: debugger, replPath: replPath, arch: arch}
}

// SetLaunchOptions installs the search-path/link/env arguments the
// %swift_library_path, %swift_module_path, %swift_framework_path,
// %swift_link, %swift_flags, and %swift_env directives accumulate. They
// take effect on the next Start or Restart; a REPL already running does
// not pick them up until restarted.
func (s *Supervisor) SetLaunchOptions(args, env []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.args = args
	s.env = env
}

// Start launches the embedded REPL. A failure here does
// not stop the kernel from starting; Execute reports the degraded state on
// every subsequent call instead.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debugger.Launch(ctx, s.replPath, s.arch, s.args, s.env); err != nil {
		s.degraded = true
		logging.FromContext(ctx).Error("repl launch failed", "error", err)
		return err
	}
	s.launched = true
	return nil
}

// Degraded reports whether the process could not be started or has fatally
// exited.
func (s *Supervisor) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// ProcessState reports the debugger's current run state, for callers that
// need to distinguish "never launched" from "launched but stopped" rather
// than the coarser Degraded flag.
func (s *Supervisor) ProcessState() ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.launched {
		return StateNoProcess
	}
	return s.debugger.ProcessState()
}

// Restart tears down and relaunches the REPL, for %reset and post-fatal
// recovery.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.debugger.Terminate()
	s.degraded = false
	if err := s.debugger.Launch(ctx, s.replPath, s.arch, s.args, s.env); err != nil {
		s.degraded = true
		return err
	}
	s.launched = true
	return nil
}

// Shutdown terminates the debugger session.
func (s *Supervisor) Shutdown() error {
	return s.debugger.Terminate()
}

// StdoutSink receives decoded stdout chunks as they are drained, keyed to
// the currently executing cell. iobridge supplies the concrete sink.
type StdoutSink func(chunk string)

// Execute implements the evaluation contract: prepend the
// source-location directive, evaluate, classify. It does not drain stdout
// itself; iobridge's poller forwards stdout while the cell runs.
func (s *Supervisor) Execute(ctx context.Context, sourceLocationDirective, source string) Outcome {
	s.mu.Lock()
	degraded := s.degraded
	s.mu.Unlock()
	if degraded {
		return Outcome{
			Kind:    RuntimeError,
			Fatal:   true,
			Message: "the Swift REPL process is not running; re-registration of the kernel may be required",
		}
	}

	full := sourceLocationDirective + source
	result, err := s.debugger.Evaluate(ctx, full)
	if err != nil {
		if errors.Is(err, errInterrupted) {
			return Outcome{Kind: Interrupted}
		}
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
		return Outcome{
			Kind:    RuntimeError,
			Fatal:   true,
			Message: fmt.Sprintf("the Swift process exited unexpectedly: %v", err),
		}
	}

	state := s.debugger.ProcessState()
	if state == StateExited || state == StateNoProcess {
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
		return Outcome{
			Kind:    RuntimeError,
			Fatal:   true,
			Message: "the Swift process exited; re-registration of the kernel may be required",
		}
	}

	if state == StateStoppedNonExit {
		frames := s.debugger.StackFrames()
		return Outcome{Kind: RuntimeError, Frames: frames, Message: "the Swift process stopped unexpectedly"}
	}

	if result.ErrorReported && strings.HasPrefix(result.ErrorDescription, compileErrorPrefix) {
		return Outcome{Kind: CompileError, Message: strings.TrimPrefix(result.ErrorDescription, compileErrorPrefix)}
	}
	if result.ErrorReported {
		return Outcome{Kind: RuntimeError, Message: result.ErrorDescription, Frames: s.debugger.StackFrames()}
	}

	if result.HasValue {
		val := renderValue(result)
		return Outcome{Kind: SuccessValue, Value: val}
	}
	return Outcome{Kind: SuccessVoid}
}

// renderValue produces both plain-text and HTML forms of a result, with
// row-capped table rendering for sequences, mappings and records.
func renderValue(result EvalResult) Value {
	v := Value{TypeName: result.TypeName, Summary: result.ValueDescription}

	switch classifyShape(result) {
	case shapeSequence:
		v.Text, v.HTML = renderRows(result.Children, maxSequenceRows, "index")
	case shapeMapping:
		v.Text, v.HTML = renderRows(result.Children, maxMappingRows, "key")
	case shapeRecord:
		v.Text, v.HTML = renderRecordRows(result.Children, maxRecordRows)
	default:
		v.Text = result.ValueDescription
		v.HTML = "<pre>" + htmlEscape(result.ValueDescription) + "</pre>"
	}
	return v
}

type shape int

const (
	shapeScalar shape = iota
	shapeSequence
	shapeMapping
	shapeRecord
)

// classifyShape guesses a result's display shape from its children, since
// the pty-driven stand-in debugger exposes no type introspection beyond
// text; a real SBValue-backed debugger would report this directly.
func classifyShape(result EvalResult) shape {
	if len(result.Children) == 0 {
		return shapeScalar
	}
	if strings.HasPrefix(result.TypeName, "[") && strings.Contains(result.TypeName, ":") {
		return shapeMapping
	}
	if strings.HasPrefix(result.TypeName, "[") {
		return shapeSequence
	}
	return shapeRecord
}

func renderRows(children []ValueChild, rowCap int, keyLabel string) (text, html string) {
	n := len(children)
	truncated := n > rowCap
	if truncated {
		n = rowCap
	}
	var textB, htmlB strings.Builder
	htmlB.WriteString("<table><thead><tr><th>" + keyLabel + "</th><th>value</th></tr></thead><tbody>")
	for i := 0; i < n; i++ {
		c := children[i]
		textB.WriteString(fmt.Sprintf("%s: %s\n", c.Key, c.Value))
		htmlB.WriteString("<tr><td>" + htmlEscape(c.Key) + "</td><td>" + htmlEscape(c.Value) + "</td></tr>")
	}
	htmlB.WriteString("</tbody></table>")
	if truncated {
		textB.WriteString(fmt.Sprintf("… (%d more)\n", len(children)-rowCap))
	}
	return textB.String(), htmlB.String()
}

func renderRecordRows(children []ValueChild, rowCap int) (text, html string) {
	n := len(children)
	truncated := n > rowCap
	if truncated {
		n = rowCap
	}
	var textB, htmlB strings.Builder
	htmlB.WriteString("<table><thead><tr><th>field</th><th>type</th><th>value</th></tr></thead><tbody>")
	for i := 0; i < n; i++ {
		c := children[i]
		textB.WriteString(fmt.Sprintf("%s: %s = %s\n", c.Key, c.Type, c.Value))
		htmlB.WriteString("<tr><td>" + htmlEscape(c.Key) + "</td><td>" + htmlEscape(c.Type) + "</td><td>" + htmlEscape(c.Value) + "</td></tr>")
	}
	htmlB.WriteString("</tbody></table>")
	if truncated {
		textB.WriteString(fmt.Sprintf("… (%d more)\n", len(children)-rowCap))
	}
	return textB.String(), htmlB.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
	return r.Replace(s)
}

// Interrupt forwards to the debugger and counts the attempt.
func (s *Supervisor) Interrupt() {
	s.debugger.Interrupt()
	s.mu.Lock()
	s.interruptCount++
	s.mu.Unlock()
}

// InterruptCount reports how many interrupts have been issued this session.
func (s *Supervisor) InterruptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interruptCount
}

// Complete runs the debugger's completion query and computes the code-point
// cursor range the client expects. prefix is source sliced by code
// points up to the cursor already; cursorPos is the absolute cursor
// position in code points.
func (s *Supervisor) Complete(ctx context.Context, prefix string, cursorPos int) (matches []string, cursorStart, cursorEnd int, err error) {
	candidates, common, err := s.debugger.Complete(ctx, prefix)
	if err != nil {
		return nil, cursorPos, cursorPos, nil
	}
	commonLen := len([]rune(common))
	cursorStart = cursorPos - commonLen
	if cursorStart < 0 {
		cursorStart = 0
	}
	return candidates, cursorStart, cursorPos, nil
}

// TimeIt runs source N times, choosing N so the total wall-clock time is at
// least minTotal or capped at maxIterations.
func (s *Supervisor) TimeIt(ctx context.Context, sourceLocationDirective, source string, minTotal time.Duration, maxIterations int) (min, mean, max time.Duration, iterations int, outcome Outcome) {
	iterations = 0
	var total time.Duration
	min = time.Duration(1<<63 - 1)

	for iterations < maxIterations {
		start := time.Now()
		o := s.Execute(ctx, sourceLocationDirective, source)
		elapsed := time.Since(start)
		iterations++

		if o.Kind != SuccessValue && o.Kind != SuccessVoid {
			return 0, 0, 0, iterations, o
		}
		total += elapsed
		if elapsed < min {
			min = elapsed
		}
		if elapsed > max {
			max = elapsed
		}
		if total >= minTotal {
			break
		}
	}
	if iterations == 0 {
		return 0, 0, 0, 0, Outcome{Kind: SuccessVoid}
	}
	mean = total / time.Duration(iterations)
	return min, mean, max, iterations, Outcome{Kind: SuccessVoid}
}

// FormatTimeIt renders a %timeit summary line.
func FormatTimeIt(min, mean, max time.Duration, iterations int) string {
	return fmt.Sprintf("%d loops: min %s, mean %s, max %s", iterations,
		formatDuration(min), formatDuration(mean), formatDuration(max))
}

func formatDuration(d time.Duration) string {
	if d < time.Microsecond {
		return strconv.FormatInt(d.Nanoseconds(), 10) + "ns"
	}
	if d < time.Millisecond {
		return strconv.FormatFloat(float64(d.Microseconds()), 'f', 2, 64) + "µs"
	}
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds()*1000, 'f', 2, 64) + "ms"
	}
	return d.Round(time.Millisecond).String()
}
