package kernel

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"swiftkernel/diagnostics"
	"swiftkernel/logging"
	"swiftkernel/protocol"
	"swiftkernel/repl"
)

// Adapter binds Jupyter shell/control requests to a Kernel, translating
// message content into Kernel calls and Kernel results back into the
// execute_input/stream/execute_result/error/status broadcast sequence
// the component that dispatches shell/control messages to the kernel.
type Adapter struct {
	sess   *protocol.Session
	kernel *Kernel

	mu            sync.Mutex
	currentParent protocol.Message

	shutdownCh chan bool
}

// NewAdapter binds sess to kernel, wiring the kernel's stdout sink to
// publish on iopub against whichever request is currently executing.
func NewAdapter(sess *protocol.Session, kernel *Kernel) *Adapter {
	a := &Adapter{sess: sess, kernel: kernel, shutdownCh: make(chan bool, 1)}
	kernel.SetStdoutSink(a.publishStdout)
	return a
}

// Shutdown signals when a shutdown_request has been served; the bool is the
// client's requested restart flag.
func (a *Adapter) Shutdown() <-chan bool {
	return a.shutdownCh
}

// Serve reads and dispatches requests from the shell and control channels
// until ctx is cancelled or a channel closes. The two channels run on
// separate goroutines since control-channel requests (interrupt, shutdown)
// must not queue behind a long-running execute_request on shell.
func (a *Adapter) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.serveChannel(ctx, protocol.ChannelShell) })
	g.Go(func() error { return a.serveChannel(ctx, protocol.ChannelControl) })
	return g.Wait()
}

func (a *Adapter) serveChannel(ctx context.Context, ch protocol.Channel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg, err := a.sess.Recv(ch)
		if err != nil {
			return err
		}
		a.dispatch(ctx, msg)
	}
}

func (a *Adapter) dispatch(ctx context.Context, msg protocol.Message) {
	switch msg.Header.MsgType {
	case "kernel_info_request":
		a.handleKernelInfo(ctx, msg)
	case "execute_request":
		a.handleExecute(ctx, msg)
	case "complete_request":
		a.handleComplete(ctx, msg)
	case "interrupt_request":
		a.handleInterrupt(msg)
	case "shutdown_request":
		a.handleShutdown(msg)
	default:
		logging.Logger.Warn("unhandled request type", "msg_type", msg.Header.MsgType)
	}
}

func (a *Adapter) publishStatus(parent protocol.Message, state string) {
	_ = a.sess.Reply(protocol.ChannelIOPub, parent, "status", map[string]any{"execution_state": state})
}

func (a *Adapter) publishStdout(chunk string) {
	a.mu.Lock()
	parent := a.currentParent
	a.mu.Unlock()
	if parent.Header.MsgID == "" || chunk == "" {
		return
	}
	_ = a.sess.Reply(protocol.ChannelIOPub, parent, "stream", map[string]any{"name": "stdout", "text": chunk})
}

func (a *Adapter) handleKernelInfo(ctx context.Context, parent protocol.Message) {
	a.publishStatus(parent, "busy")
	defer a.publishStatus(parent, "idle")

	info := protocol.LanguageInfo{
		Name:          "swift",
		Version:       "5.5",
		MIMEType:      "text/x-swift",
		FileExtension: ".swift",
		PygmentsLexer: "swift",
	}
	_ = a.sess.Reply(protocol.ChannelShell, parent, "kernel_info_reply", map[string]any{
		"status":                 "ok",
		"protocol_version":       protocol.ProtocolVersion,
		"implementation":         "swiftkernel",
		"implementation_version": a.kernel.SwiftVersion(ctx),
		"language_info":          info,
		"banner":                 "Swift kernel",
	})
}

func (a *Adapter) handleExecute(ctx context.Context, parent protocol.Message) {
	a.publishStatus(parent, "busy")
	defer a.publishStatus(parent, "idle")

	code, _ := parent.Content["code"].(string)
	opts := executeOptionsFromContent(parent.Content)

	a.mu.Lock()
	if opts.Silent {
		a.currentParent = protocol.Message{}
	} else {
		a.currentParent = parent
	}
	a.mu.Unlock()

	cell := a.kernel.ExecuteCell(ctx, code, opts)

	if !opts.Silent {
		_ = a.sess.Reply(protocol.ChannelIOPub, parent, "execute_input", map[string]any{
			"code":            code,
			"execution_count": cell.ExecutionCount,
		})

		if cell.Stdout != "" {
			_ = a.sess.Reply(protocol.ChannelIOPub, parent, "stream", map[string]any{"name": "stdout", "text": cell.Stdout})
		}

		switch cell.Outcome.Kind {
		case repl.SuccessValue:
			_ = a.sess.Reply(protocol.ChannelIOPub, parent, "execute_result", map[string]any{
				"execution_count": cell.ExecutionCount,
				"data": map[string]any{
					"text/plain": cell.Outcome.Value.Text,
					"text/html":  cell.Outcome.Value.HTML,
				},
				"metadata": map[string]any{},
			})
		case repl.PreprocessError, repl.CompileError, repl.RuntimeError:
			_ = a.sess.Reply(protocol.ChannelIOPub, parent, "error", map[string]any{
				"ename":     cell.Outcome.Kind.String(),
				"evalue":    cell.Outcome.Message,
				"traceback": diagnostics.FormatFrames(cell.Outcome.Frames),
			})
		case repl.Interrupted:
			_ = a.sess.Reply(protocol.ChannelIOPub, parent, "error", map[string]any{
				"ename":     "interrupted",
				"evalue":    "execution interrupted",
				"traceback": []string{},
			})
		}
	}

	_ = a.sess.Reply(protocol.ChannelShell, parent, "execute_reply", executeReplyContent(cell))
}

// executeOptionsFromContent reads the silent/store_history/allow_stdin
// fields an execute_request carries, defaulting each the way the Jupyter
// messaging spec does when the client omits it: silent and allow_stdin
// default false and true respectively, store_history defaults to the
// opposite of silent, and silent forces store_history off regardless of
// what the client sent.
func executeOptionsFromContent(content map[string]any) ExecuteOptions {
	silent, _ := content["silent"].(bool)
	allowStdin := true
	if v, ok := content["allow_stdin"].(bool); ok {
		allowStdin = v
	}
	storeHistory := !silent
	if v, ok := content["store_history"].(bool); ok {
		storeHistory = v && !silent
	}
	return ExecuteOptions{Silent: silent, StoreHistory: storeHistory, AllowStdin: allowStdin}
}

func executeReplyContent(cell *Cell) map[string]any {
	switch cell.Outcome.Kind {
	case repl.PreprocessError, repl.CompileError, repl.RuntimeError, repl.Interrupted:
		return map[string]any{
			"status":           "error",
			"execution_count":  cell.ExecutionCount,
			"ename":            cell.Outcome.Kind.String(),
			"evalue":           cell.Outcome.Message,
			"traceback":        diagnostics.FormatFrames(cell.Outcome.Frames),
		}
	default:
		return map[string]any{
			"status":           "ok",
			"execution_count":  cell.ExecutionCount,
			"user_expressions": map[string]any{},
		}
	}
}

func (a *Adapter) handleComplete(ctx context.Context, parent protocol.Message) {
	code, _ := parent.Content["code"].(string)
	cursorPos := jsonInt(parent.Content["cursor_pos"])

	runes := []rune(code)
	if cursorPos > len(runes) {
		cursorPos = len(runes)
	}
	prefix := string(runes[:cursorPos])

	matches, start, end := a.kernel.Complete(ctx, prefix, cursorPos)
	if matches == nil {
		matches = []string{}
	}
	_ = a.sess.Reply(protocol.ChannelShell, parent, "complete_reply", map[string]any{
		"status":      "ok",
		"matches":     matches,
		"cursor_start": start,
		"cursor_end":   end,
		"metadata":    map[string]any{},
	})
}

func (a *Adapter) handleInterrupt(parent protocol.Message) {
	if a.kernel.ProcessState() == repl.StateNoProcess {
		_ = a.sess.Reply(protocol.ChannelControl, parent, "interrupt_reply", map[string]any{
			"status": "error",
			"ename":  "NoProcess",
			"evalue": "the Swift REPL process is not running",
		})
		return
	}
	a.kernel.Interrupt()
	_ = a.sess.Reply(protocol.ChannelControl, parent, "interrupt_reply", map[string]any{"status": "ok"})
}

func (a *Adapter) handleShutdown(parent protocol.Message) {
	restart, _ := parent.Content["restart"].(bool)
	if err := a.kernel.Shutdown(); err != nil {
		logging.Logger.Error("kernel shutdown error", "error", err)
	}
	_ = a.sess.Reply(protocol.ChannelControl, parent, "shutdown_reply", map[string]any{
		"status":  "ok",
		"restart": restart,
	})
	select {
	case a.shutdownCh <- restart:
	default:
	}
}

// jsonInt converts a JSON-decoded numeric value (always float64 in Go's
// encoding/json without a custom decoder) to int, defaulting to 0.
func jsonInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
