//go:build unix

package iobridge

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifyInterruptSignal registers ch for the host interrupt signal. Go
// dispatches signal delivery through a single runtime-owned thread
// regardless of which goroutine calls signal.Notify, which is what
// the main thread masks the signal so only this thread
// receives it" achieves on a native debugger host.
func notifyInterruptSignal(ch chan<- os.Signal) {
	signal.Notify(ch, unix.SIGINT)
}
