// Package iobridge implements the concurrency seam between the protocol
// adapter and the REPL supervisor: stdout draining, the two interrupt
// paths, and completion-vs-execution serialization.
package iobridge

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"swiftkernel/diagnostics"
	"swiftkernel/logging"
	"swiftkernel/repl"
)

// StdoutFunc receives one decoded chunk of stdout for the currently
// executing cell.
type StdoutFunc func(chunk string)

// Bridge owns the execution-in-progress flag, the stdout drain goroutine,
// and the signal watcher; interrupts are forwarded to the Supervisor.
type Bridge struct {
	sup *repl.Supervisor

	mu               sync.Mutex
	executing        atomic.Bool
	onStdout         StdoutFunc
	pollInterval     time.Duration

	stopCh chan struct{}
	doneCh chan struct{}

	sigStop chan struct{}
}

// New builds a Bridge draining sup's stdout every pollInterval.
func New(sup *repl.Supervisor, pollInterval time.Duration) *Bridge {
	if pollInterval <= 0 {
		pollInterval = 20 * time.Millisecond
	}
	return &Bridge{
		sup:          sup,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetStdoutSink installs the function stdout chunks are forwarded to; the
// protocol adapter wires this to a stream-output publish keyed by the
// current parent header.
func (b *Bridge) SetStdoutSink(fn StdoutFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStdout = fn
}

// debugger is the subset of repl.Debugger the drain loop needs; Supervisor
// doesn't expose ReadStdout directly so the bridge is handed the debugger
// separately by the kernel wiring code.
type debugger interface {
	ReadStdout() []byte
}

// Run starts the stdout drain worker. It runs until Stop is called.
func (b *Bridge) Run(dbg debugger) {
	go func() {
		defer close(b.doneCh)
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopCh:
				return
			case <-ticker.C:
				if !b.executing.Load() {
					continue
				}
				raw := dbg.ReadStdout()
				if len(raw) == 0 {
					continue
				}
				text := diagnostics.DecodeBytes(raw)
				b.mu.Lock()
				sink := b.onStdout
				b.mu.Unlock()
				if sink != nil {
					sink(text)
				}
			}
		}
	}()
}

// Stop signals the drain worker to exit and waits for it.
func (b *Bridge) Stop() {
	close(b.stopCh)
	<-b.doneCh
}

// BeginExecution raises the execution-in-progress flag.
func (b *Bridge) BeginExecution() {
	b.executing.Store(true)
}

// EndExecution lowers the execution-in-progress flag.
func (b *Bridge) EndExecution() {
	b.executing.Store(false)
}

// Executing reports whether an execute_request is mid-flight.
func (b *Bridge) Executing() bool {
	return b.executing.Load()
}

// Interrupt is the message-based interrupt path: the protocol adapter's
// interrupt_request handler calls this directly.
func (b *Bridge) Interrupt() {
	logging.Logger.Info("interrupt requested")
	b.sup.Interrupt()
}

// WatchSignals starts the legacy signal-based interrupt path: a dedicated
// goroutine receives the host interrupt signal and calls Interrupt(), so
// old clients relying on process signals rather than interrupt_request
// still work. Calling it again while a watch is running is a no-op.
func (b *Bridge) WatchSignals(ctx context.Context) {
	if b.sigStop != nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	notifyInterruptSignal(sigCh)
	b.sigStop = make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.sigStop:
				return
			case <-sigCh:
				b.Interrupt()
			}
		}
	}()
}

// StopSignalWatch tears down the legacy signal-based interrupt path. It is
// safe to call more than once.
func (b *Bridge) StopSignalWatch() {
	if b.sigStop != nil {
		close(b.sigStop)
		b.sigStop = nil
	}
}

// CompletionGate returns true if a complete_request should proceed, false
// if it must return an empty match list because execution is in progress.
func (b *Bridge) CompletionGate() bool {
	return !b.executing.Load()
}
