//go:build !unix

package iobridge

import (
	"os"
	"os/signal"
)

func notifyInterruptSignal(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
